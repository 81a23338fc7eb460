package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"vistacrop/internal/compose"
	"vistacrop/internal/domain"
)

// Router returns the HTTP API surface. All state-changing endpoints
// operate on the single open editing session.
func (a *App) Router() *http.ServeMux {
	mux := http.NewServeMux()

	// Compositions.
	mux.HandleFunc("GET /api/compositions", a.handleListCompositions)
	mux.HandleFunc("POST /api/compositions", a.handleCreateComposition)
	mux.HandleFunc("GET /api/compositions/{id}", a.handleGetComposition)
	mux.HandleFunc("DELETE /api/compositions/{id}", a.handleDeleteComposition)
	mux.HandleFunc("POST /api/compositions/{id}/open", a.handleOpenComposition)
	mux.HandleFunc("POST /api/compositions/{id}/export", a.handleExport)
	mux.HandleFunc("GET /api/compositions/{id}/exports", a.handleListExports)
	mux.HandleFunc("POST /api/compositions/{id}/thumbnail", a.handleGenerateThumbnail)
	mux.HandleFunc("GET /api/compositions/{id}/thumbnail", a.handleGetThumbnail)

	// Open session.
	mux.HandleFunc("GET /api/session", a.handleEditorState)
	mux.HandleFunc("POST /api/session/save", a.handleSave)
	mux.HandleFunc("PUT /api/session/mode", a.handleSetMode)
	mux.HandleFunc("GET /api/session/preview", a.handlePreview)
	mux.HandleFunc("POST /api/session/undo", a.handleUndo)
	mux.HandleFunc("POST /api/session/redo", a.handleRedo)
	mux.HandleFunc("POST /api/session/drag-end", a.handleDragEnd)

	// Pages.
	mux.HandleFunc("POST /api/session/pages", a.handleAddPage)
	mux.HandleFunc("DELETE /api/session/pages/{index}", a.handleDeletePage)
	mux.HandleFunc("POST /api/session/pages/{index}/duplicate", a.handleDuplicatePage)
	mux.HandleFunc("POST /api/session/pages/{index}/select", a.handleSelectPage)

	// Freeform items.
	mux.HandleFunc("POST /api/session/items", a.handleDropCrop)
	mux.HandleFunc("POST /api/session/items/batch", a.handleAddCrops)
	mux.HandleFunc("PATCH /api/session/items/{id}", a.handleUpdateItem)
	mux.HandleFunc("DELETE /api/session/items/{id}", a.handleDeleteItem)
	mux.HandleFunc("DELETE /api/session/items", a.handleClearItems)
	mux.HandleFunc("POST /api/session/items/{id}/nudge", a.handleNudgeItem)

	// Panels.
	mux.HandleFunc("PUT /api/session/layout", a.handleSetLayout)
	mux.HandleFunc("POST /api/session/panels/{index}/crop", a.handlePanelDrop)
	mux.HandleFunc("DELETE /api/session/panels/{index}/crop", a.handlePanelClear)
	mux.HandleFunc("PUT /api/session/panels/{index}/zoom", a.handlePanelZoom)
	mux.HandleFunc("PUT /api/session/panels/{index}/offset", a.handlePanelOffset)

	// Crop library.
	mux.HandleFunc("GET /api/crops", a.handleListCrops)
	mux.HandleFunc("PUT /api/images/{imageId}/crops", a.handleSaveCrops)
	mux.HandleFunc("PATCH /api/images/{imageId}/crops/{cropId}", a.handleUpdateCrop)
	mux.HandleFunc("DELETE /api/images/{imageId}/crops/{cropId}", a.handleDeleteCrop)
	mux.HandleFunc("POST /api/images/{imageId}", a.handleUploadOriginal)
	mux.HandleFunc("POST /api/crops/{id}/preview", a.handleUploadPreview)

	// Catalogs and events.
	mux.HandleFunc("GET /api/layouts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.ListLayouts())
	})
	mux.HandleFunc("GET /api/page-presets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.ListPagePresets())
	})
	mux.HandleFunc("GET /api/events", a.handleEvents)

	return mux
}

// ── compositions ───────────────────────────────────────────

func (a *App) handleListCompositions(w http.ResponseWriter, r *http.Request) {
	list, err := a.ListCompositions()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []domain.CompositionMeta{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *App) handleCreateComposition(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name       string `json:"name"`
		Mode       string `json:"mode"`
		PagePreset string `json:"pagePreset"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	doc, err := a.CreateComposition(in.Name, in.Mode, in.PagePreset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (a *App) handleGetComposition(w http.ResponseWriter, r *http.Request) {
	doc, err := a.GetComposition(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *App) handleDeleteComposition(w http.ResponseWriter, r *http.Request) {
	if err := a.DeleteComposition(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleOpenComposition(w http.ResponseWriter, r *http.Request) {
	doc, err := a.OpenComposition(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ── session ────────────────────────────────────────────────

func (a *App) handleEditorState(w http.ResponseWriter, r *http.Request) {
	state, err := a.GetEditorState()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *App) handleSave(w http.ResponseWriter, r *http.Request) {
	a.SaveComposition()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Mode string `json:"mode"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.SetCompositionMode(in.Mode); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePreview(w http.ResponseWriter, r *http.Request) {
	scale := 1.0
	if s := r.URL.Query().Get("scale"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid scale", http.StatusBadRequest)
			return
		}
		scale = v
	}
	img, err := a.RenderCurrentPage(r.Context(), scale)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		a.log.Error("encode preview", "error", err)
	}
}

func (a *App) handleUndo(w http.ResponseWriter, r *http.Request) {
	ok, err := a.Undo()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": ok})
}

func (a *App) handleRedo(w http.ResponseWriter, r *http.Request) {
	ok, err := a.Redo()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": ok})
}

func (a *App) handleDragEnd(w http.ResponseWriter, r *http.Request) {
	if err := a.DragEnd(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── pages ──────────────────────────────────────────────────

func (a *App) handleAddPage(w http.ResponseWriter, r *http.Request) {
	id, err := a.AddPage()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *App) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := a.DeletePage(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleDuplicatePage(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	id, err := a.DuplicatePage(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *App) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := a.SelectPage(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── items ──────────────────────────────────────────────────

func (a *App) handleDropCrop(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CropID string  `json:"cropId"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	id, err := a.DropCrop(r.Context(), in.CropID, in.X, in.Y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *App) handleAddCrops(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CropIDs []string `json:"cropIds"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	ids, err := a.AddCrops(r.Context(), in.CropIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]string{"ids": ids})
}

func (a *App) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch compose.ItemPatch
	if !readJSON(w, r, &patch) {
		return
	}
	var err error
	if r.URL.Query().Get("live") == "1" {
		err = a.UpdateItemLive(r.PathValue("id"), patch)
	} else {
		err = a.UpdateItem(r.PathValue("id"), patch)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := a.DeleteItem(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleClearItems(w http.ResponseWriter, r *http.Request) {
	if err := a.ClearItems(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleNudgeItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.NudgeItem(r.PathValue("id"), in.DX, in.DY); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── panels ─────────────────────────────────────────────────

func (a *App) handleSetLayout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		LayoutID string `json:"layoutId"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.SetLayout(in.LayoutID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePanelDrop(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var in struct {
		CropID string `json:"cropId"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.DropCropToPanel(index, in.CropID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePanelClear(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := a.ClearPanel(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePanelZoom(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var in struct {
		Zoom float64 `json:"zoom"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.SetPanelZoom(index, in.Zoom); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handlePanelOffset(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var in struct {
		OffsetX float64 `json:"offsetX"`
		OffsetY float64 `json:"offsetY"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.SetPanelOffset(index, in.OffsetX, in.OffsetY); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── crop library ───────────────────────────────────────────

func (a *App) handleListCrops(w http.ResponseWriter, r *http.Request) {
	crops, err := a.ListCrops(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if crops == nil {
		crops = []domain.Crop{}
	}
	writeJSON(w, http.StatusOK, crops)
}

func (a *App) handleSaveCrops(w http.ResponseWriter, r *http.Request) {
	var crops []domain.Crop
	if !readJSON(w, r, &crops) {
		return
	}
	if err := a.SaveCrops(r.Context(), r.PathValue("imageId"), crops); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crops)
}

func (a *App) handleUpdateCrop(w http.ResponseWriter, r *http.Request) {
	var patch domain.CropPatch
	if !readJSON(w, r, &patch) {
		return
	}
	crop, err := a.UpdateCrop(r.Context(), r.PathValue("imageId"), r.PathValue("cropId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, crop)
}

func (a *App) handleDeleteCrop(w http.ResponseWriter, r *http.Request) {
	if err := a.DeleteCrop(r.Context(), r.PathValue("imageId"), r.PathValue("cropId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleUploadOriginal(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Ext  string `json:"ext"`
		Data string `json:"data"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.UploadOriginalImage(r.PathValue("imageId"), in.Ext, in.Data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleUploadPreview(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Data string `json:"data"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if err := a.UploadPreviewImage(r.PathValue("id"), in.Data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── exports ────────────────────────────────────────────────

func (a *App) handleExport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Format string  `json:"format"`
		Scale  float64 `json:"scale"`
	}
	if !readJSON(w, r, &in) {
		return
	}
	if in.Format == "" {
		in.Format = "png"
	}
	records, err := a.ExportComposition(r.Context(), r.PathValue("id"), in.Format, in.Scale)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *App) handleListExports(w http.ResponseWriter, r *http.Request) {
	records, err := a.ListExports(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *App) handleGenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := a.GenerateThumbnail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (a *App) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := a.ThumbnailPath(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if path == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// ── events ─────────────────────────────────────────────────

// handleEvents streams change notifications as server-sent events.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	ch := a.events.Subscribe()
	defer a.events.Unsubscribe(ch)

	for {
		select {
		case payload, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// ── helpers ────────────────────────────────────────────────

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrLastPage):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
