package dossiersdk

import (
	"fmt"
	"runtime"

	"github.com/openmined/dossier/internal/digest"
	"github.com/openmined/dossier/internal/version"
)

const (
	HeaderUserAgent      = "User-Agent"
	HeaderDossierVersion = "X-Dossier-Version"
)

var UserAgent = fmt.Sprintf("Dossier/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

type ChunkResponse struct {
	Path   string         `json:"path"`
	Digest *digest.Digest `json:"digest"`
}

type ListResponse struct {
	Files map[string]digest.Digest `json:"files"`
}

type DeleteRequest struct {
	Path string `json:"path"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
}
