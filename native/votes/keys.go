package votes

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key scheme. All logical tables share one flat key-value namespace, so every
// builder below must yield a key no other (table, network, entity) tuple can
// produce. The three shapes in play:
//
//	numeric   bigEndian(fip, 4) || discriminant(1)          5 bytes
//	address   tag(1) || address(20)                        21 bytes
//	admin     literal prefix || network(1)                >=13 bytes, ASCII
//
// Numeric discriminants: votes list takes 0-1 (the network code), start
// timestamps take 2-3, per-choice power totals take 4-9 via
// 4 + choice*2 + network. Address tags: forward registrations use the
// network code, the reverse address->network lookup uses 0xff. Admin keys
// begin with "admin/", which no numeric or address key can start with since
// discriminants and tags never equal 'a'. keys_test.go enumerates the whole
// space and asserts no two keys collide.

const (
	discStartTimeBase  = 2
	discPowerTotalBase = 4

	tagNetworkLookup = 0xff

	adminStartersPrefix  = "admin/starters/"
	adminActivePrefix    = "admin/active/"
	adminConcludedPrefix = "admin/concluded/"
)

func numericKey(fip uint32, discriminant byte) []byte {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[:4], fip)
	buf[4] = discriminant
	return buf
}

// votesKey addresses the ordered ballot list for a proposal.
func votesKey(fip uint32, ntw Network) []byte {
	return numericKey(fip, byte(ntw))
}

// startTimeKey addresses a proposal's immutable start timestamp.
func startTimeKey(fip uint32, ntw Network) []byte {
	return numericKey(fip, discStartTimeBase+byte(ntw))
}

// powerTotalKey addresses the running storage-power total for one choice on
// one proposal.
func powerTotalKey(fip uint32, choice VoteChoice, ntw Network) []byte {
	return numericKey(fip, discPowerTotalBase+byte(choice)*2+byte(ntw))
}

func addressKey(tag byte, addr common.Address) []byte {
	buf := make([]byte, 1+common.AddressLength)
	buf[0] = tag
	copy(buf[1:], addr.Bytes())
	return buf
}

// registrationKey addresses a voter's delegate set on a network.
func registrationKey(ntw Network, addr common.Address) []byte {
	return addressKey(byte(ntw), addr)
}

// networkLookupKey addresses the reverse voter->network association.
func networkLookupKey(addr common.Address) []byte {
	return addressKey(tagNetworkLookup, addr)
}

func adminKey(prefix string, ntw Network) []byte {
	buf := make([]byte, 0, len(prefix)+1)
	buf = append(buf, prefix...)
	buf = append(buf, byte(ntw))
	return buf
}

// startersKey addresses the per-network vote-starter set.
func startersKey(ntw Network) []byte {
	return adminKey(adminStartersPrefix, ntw)
}

// activeKey addresses the per-network index of in-progress proposals.
func activeKey(ntw Network) []byte {
	return adminKey(adminActivePrefix, ntw)
}

// concludedKey addresses the per-network index of concluded proposals.
func concludedKey(ntw Network) []byte {
	return adminKey(adminConcludedPrefix, ntw)
}
