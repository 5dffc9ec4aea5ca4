package votes

import (
	"bytes"
	"encoding/binary"
	stdbig "math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/filecoin-project/go-state-types/big"
)

// Value codecs for the stored tables. Every encoding is deterministic: sets
// are sorted before serialisation so re-writing unchanged state yields
// identical bytes.

func encodeVoteList(list []Vote) []byte {
	buf := make([]byte, 0, len(list)*voteWireSize)
	for _, v := range list {
		buf = append(buf, v.Encode()...)
	}
	return buf
}

func decodeVoteList(b []byte) ([]Vote, error) {
	if len(b)%voteWireSize != 0 {
		return nil, &DecodeError{Entity: "vote list", Len: len(b)}
	}
	list := make([]Vote, 0, len(b)/voteWireSize)
	for off := 0; off < len(b); off += voteWireSize {
		v, err := DecodeVote(b[off : off+voteWireSize])
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func encodeAddressSet(addrs []common.Address) []byte {
	sorted := make([]common.Address, len(addrs))
	copy(sorted, addrs)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Bytes(), sorted[j].Bytes()) < 0
	})
	buf := make([]byte, 0, len(sorted)*common.AddressLength)
	var prev common.Address
	for i, addr := range sorted {
		if i > 0 && addr == prev {
			continue
		}
		buf = append(buf, addr.Bytes()...)
		prev = addr
	}
	return buf
}

func decodeAddressSet(b []byte) ([]common.Address, error) {
	if len(b)%common.AddressLength != 0 {
		return nil, &DecodeError{Entity: "address set", Len: len(b)}
	}
	addrs := make([]common.Address, 0, len(b)/common.AddressLength)
	for off := 0; off < len(b); off += common.AddressLength {
		addrs = append(addrs, common.BytesToAddress(b[off:off+common.AddressLength]))
	}
	return addrs, nil
}

func encodeFIPSet(fips []uint32) []byte {
	sorted := make([]uint32, len(fips))
	copy(sorted, fips)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	buf := make([]byte, 0, len(sorted)*4)
	for i, fip := range sorted {
		if i > 0 && fip == sorted[i-1] {
			continue
		}
		buf = binary.BigEndian.AppendUint32(buf, fip)
	}
	return buf
}

func decodeFIPSet(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, &DecodeError{Entity: "fip set", Len: len(b)}
	}
	fips := make([]uint32, 0, len(b)/4)
	for off := 0; off < len(b); off += 4 {
		fips = append(fips, binary.BigEndian.Uint32(b[off:off+4]))
	}
	return fips, nil
}

func encodeMinerIDs(ids []uint64) []byte {
	sorted := make([]uint64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	buf := make([]byte, 0, len(sorted)*8)
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		buf = binary.BigEndian.AppendUint64(buf, id)
	}
	return buf
}

func decodeMinerIDs(b []byte) ([]uint64, error) {
	if len(b)%8 != 0 {
		return nil, &DecodeError{Entity: "miner id set", Len: len(b)}
	}
	ids := make([]uint64, 0, len(b)/8)
	for off := 0; off < len(b); off += 8 {
		ids = append(ids, binary.BigEndian.Uint64(b[off:off+8]))
	}
	return ids, nil
}

func encodeTimestamp(ts uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, ts)
	return buf
}

func decodeTimestamp(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, &DecodeError{Entity: "timestamp", Len: len(b)}
	}
	return binary.BigEndian.Uint64(b), nil
}

// Power totals are stored as the minimal big-endian magnitude. Raw byte power
// is never negative, so no sign byte is carried.
func encodePower(p big.Int) []byte {
	if p.Nil() {
		return nil
	}
	return p.Int.Bytes()
}

func decodePower(b []byte) big.Int {
	return big.NewFromGo(new(stdbig.Int).SetBytes(b))
}
