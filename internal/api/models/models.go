package models

import "github.com/homegw/homegw-rt/internal/bridge"

type ErrorResponse struct {
	Details string `json:"details"`
}

type ResetResponse struct {
	Pin    string `json:"pin"`
	Status string `json:"status"`
}

type MemoryResponse struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

type StatusResponse struct {
	bridge.Status
	Memory *MemoryResponse `json:"memory,omitempty"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
