package handlers

import (
	"net/http"

	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/pkg/render"
)

func HandlerVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.EncodeResponse(w, http.StatusOK, models.VersionResponse{Version: version})
	}
}
