package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"fipvote/messages"
	"fipvote/native/votes"
)

// GetVote reports the state of a FIP vote: the seconds remaining while the
// window is open, the final tally once it has closed, 404 if it was never
// started.
func (s *Server) GetVote(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fip, err := queryFIP(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status, err := s.engine.VoteStatus(fip, s.voteLength, ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch status.Status {
	case votes.StatusInProgress:
		s.writeJSON(w, http.StatusOK, status.SecondsRemaining)
	case votes.StatusConcluded:
		tally, err := s.engine.VoteResults(fip, ntw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, tally)
	default:
		http.Error(w, fmt.Sprintf("no vote for FIP-%d on %s", fip, ntw), http.StatusNotFound)
	}
}

// GetDelegates lists the miners an address is registered to vote for,
// rendered in the network's id-address form.
func (s *Server) GetDelegates(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	voter, err := queryAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	delegates, err := s.engine.Delegates(voter, ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rendered := make([]string, 0, len(delegates))
	for _, id := range delegates {
		rendered = append(rendered, fmt.Sprintf("%s0%d", ntw.AddressPrefix(), id))
	}
	s.writeJSON(w, http.StatusOK, rendered)
}

// GetVotingPower returns the live aggregate raw byte power behind an address.
func (s *Server) GetVotingPower(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	voter, err := queryAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	power, err := s.engine.VotingPower(requestContext(r), voter, ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, power)
}

// GetVoteStarters lists the addresses allowed to open votes on the network.
func (s *Server) GetVoteStarters(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	starters, err := s.engine.Starters(ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rendered := make([]string, 0, len(starters))
	for _, starter := range starters {
		rendered = append(rendered, starter.Hex())
	}
	s.writeJSON(w, http.StatusOK, rendered)
}

// GetActiveVotes lists the FIPs whose voting window is currently open.
// Expired entries are retired first so the answer is never stale.
func (s *Server) GetActiveVotes(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.SweepExpired(ntw, s.voteLength); err != nil {
		s.writeError(w, err)
		return
	}
	active, err := s.engine.ListActive(ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if active == nil {
		active = []uint32{}
	}
	s.writeJSON(w, http.StatusOK, active)
}

// GetConcludedVotes lists the FIPs whose voting window has closed.
func (s *Server) GetConcludedVotes(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.SweepExpired(ntw, s.voteLength); err != nil {
		s.writeError(w, err)
		return
	}
	concluded, err := s.engine.ListConcluded(ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if concluded == nil {
		concluded = []uint32{}
	}
	s.writeJSON(w, http.StatusOK, concluded)
}

// GetAllConcludedVotes lists the concluded FIPs across every network, as one
// deduplicated sorted set.
func (s *Server) GetAllConcludedVotes(w http.ResponseWriter, r *http.Request) {
	seen := make(map[uint32]struct{})
	for _, ntw := range votes.Networks() {
		if err := s.engine.SweepExpired(ntw, s.voteLength); err != nil {
			s.writeError(w, err)
			return
		}
		concluded, err := s.engine.ListConcluded(ntw)
		if err != nil {
			s.writeError(w, err)
			return
		}
		for _, fip := range concluded {
			seen[fip] = struct{}{}
		}
	}
	all := make([]uint32, 0, len(seen))
	for fip := range seen {
		all = append(all, fip)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	s.writeJSON(w, http.StatusOK, all)
}

// GetStorage returns the current raw byte power of a single miner.
func (s *Server) GetStorage(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	minerID, err := messages.ParseMinerID(r.URL.Query().Get("miner_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	power, err := s.oracle.MinerRawPower(requestContext(r), minerID, ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, power)
}

func queryFIP(r *http.Request) (uint32, error) {
	raw := r.URL.Query().Get("fip_number")
	fip, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: fip_number %q", messages.ErrInvalidMessageFormat, raw)
	}
	return uint32(fip), nil
}

func queryAddress(r *http.Request) (common.Address, error) {
	raw := r.URL.Query().Get("address")
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: address %q", messages.ErrInvalidAddress, raw)
	}
	return common.HexToAddress(raw), nil
}
