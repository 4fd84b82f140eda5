package files

import "github.com/openmined/dossier/internal/digest"

type ChunkRequest struct {
	Path  string `form:"path" binding:"required"`
	Start bool   `form:"start"`
	Final bool   `form:"final"`
}

type ChunkResponse struct {
	Path   string         `json:"path"`
	Digest *digest.Digest `json:"digest"`
}

type ListRequest struct {
	Prefix string `form:"prefix"`
}

type ListResponse struct {
	Files map[string]digest.Digest `json:"files"`
}

type DeleteRequest struct {
	Path string `json:"path" binding:"required"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
