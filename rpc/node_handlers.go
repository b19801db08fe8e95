package rpc

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

type nodeStatusResult struct {
	ChainID       uint64   `json:"chainId"`
	Owner         string   `json:"owner"`
	PausedModules []string `json:"pausedModules"`
	EventSeq      uint64   `json:"eventSeq"`
	Timestamp     int64    `json:"timestamp"`
}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) registerNodeMethods() {
	s.register("node_status", "node", false, s.handleNodeStatus)
	s.register("node_setPaused", "node", true, s.handleSetPaused)
}

func (s *Server) handleNodeStatus(_ context.Context, _ common.Address, _ []json.RawMessage) (interface{}, error) {
	chainID, err := s.node.ChainID()
	if err != nil {
		return nil, err
	}
	owner, err := s.node.Owner()
	if err != nil {
		return nil, err
	}
	return nodeStatusResult{
		ChainID:       chainID,
		Owner:         owner.Hex(),
		PausedModules: s.node.Pauses().Paused(),
		EventSeq:      s.node.Events().Seq(),
		Timestamp:     s.node.Clock().Now().Unix(),
	}, nil
}

func (s *Server) handleSetPaused(ctx context.Context, caller common.Address, raw []json.RawMessage) (interface{}, error) {
	params, err := decodeParams[setPausedParams](raw)
	if err != nil {
		return nil, err
	}
	if err := s.node.SetPaused(ctx, caller, params.Module, params.Paused); err != nil {
		return nil, err
	}
	return map[string]interface{}{"module": params.Module, "paused": params.Paused}, nil
}
