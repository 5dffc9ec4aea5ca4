package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"fipvote/messages"
	"fipvote/native/votes"
)

// RegisterVote admits a signed ballot. The FIP voted on and the voter both
// come out of the signed message; a fip_number query parameter, when present,
// must agree with the signed payload.
func (s *Server) RegisterVote(w http.ResponseWriter, r *http.Request) {
	var received messages.ReceivedVote
	if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	vote, err := received.Vote()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("fip_number"); raw != "" {
		queried, err := queryFIP(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if queried != vote.FIP {
			http.Error(w, fmt.Sprintf("fip_number %d does not match signed ballot for FIP-%d", queried, vote.FIP),
				http.StatusBadRequest)
			return
		}
	}
	if err := s.engine.CastVote(requestContext(r), vote.FIP, vote, s.voteLength); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("ballot admitted", "fip", vote.FIP, "choice", vote.Choice.String(), "voter", vote.Voter.Hex())
	w.WriteHeader(http.StatusOK)
}

// StartVote opens the voting window for a FIP. The signer must be in the
// network's starter set. Responds with the window length in seconds.
func (s *Server) StartVote(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var start messages.VoteStart
	if err := json.NewDecoder(r.Body).Decode(&start); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	starter, fip, err := start.Auth()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.StartVote(fip, starter, ntw); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("vote started", "fip", fip, "network", ntw.String(), "starter", starter.Hex())
	s.writeJSON(w, http.StatusOK, s.voteLength)
}

// RegisterVoteStarter admits a new vote starter. Only an address already in
// the network's starter set may authorize another.
func (s *Server) RegisterVoteStarter(w http.ResponseWriter, r *http.Request) {
	ntw, err := queryNetwork(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var auth messages.StarterAuthorization
	if err := json.NewDecoder(r.Body).Decode(&auth); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	signer, candidate, err := auth.Auth()
	if err != nil {
		s.writeError(w, err)
		return
	}
	authorized, err := s.engine.IsAuthorizedStarter(signer, ntw)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !authorized {
		s.writeError(w, fmt.Errorf("%w: %s", votes.ErrNotAuthorized, signer.Hex()))
		return
	}
	if err := s.engine.RegisterStarter(candidate, ntw); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("vote starter registered", "network", ntw.String(), "starter", candidate.Hex(), "by", signer.Hex())
	w.WriteHeader(http.StatusOK)
}

// RegisterVoter records a voter's delegate miners. The network is derived
// from the claimed worker key, and control of every listed miner is confirmed
// against chain state before anything is stored.
func (s *Server) RegisterVoter(w http.ResponseWriter, r *http.Request) {
	var received messages.ReceivedRegistration
	if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	reg, err := received.Recover()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx := requestContext(r)
	for _, minerID := range reg.MinerIDs {
		controls, err := s.oracle.VerifyMinerControl(ctx, minerID, reg.Worker, reg.Network)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !controls {
			http.Error(w, fmt.Sprintf("worker %s does not control miner %s0%d",
				reg.Worker, reg.Network.AddressPrefix(), minerID), http.StatusForbidden)
			return
		}
	}
	if err := s.engine.Register(votes.Registration{
		Voter:    reg.Voter,
		Network:  reg.Network,
		MinerIDs: reg.MinerIDs,
	}); err != nil {
		s.writeError(w, err)
		return
	}
	rendered := make([]string, 0, len(reg.MinerIDs))
	for _, id := range reg.MinerIDs {
		rendered = append(rendered, fmt.Sprintf("%s0%d", reg.Network.AddressPrefix(), id))
	}
	s.log.Info("voter registered", "voter", reg.Voter.Hex(), "network", reg.Network.String(), "miners", len(reg.MinerIDs))
	s.writeJSON(w, http.StatusOK, rendered)
}

// UnregisterVoter removes a voter's registration. The message names the voter
// being removed and must be signed by that voter; the worker key picks the
// network exactly as registration does.
func (s *Server) UnregisterVoter(w http.ResponseWriter, r *http.Request) {
	var received messages.ReceivedRegistration
	if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	reg, err := received.Recover()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.Unregister(reg.Voter, reg.Network); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("voter unregistered", "voter", reg.Voter.Hex(), "network", reg.Network.String())
	w.WriteHeader(http.StatusOK)
}
