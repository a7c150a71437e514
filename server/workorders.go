package server

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/tecpap/lineplan/dataset"
	"github.com/tecpap/lineplan/engine"
)

// workOrderOut is the queue view of one order.
type workOrderOut struct {
	OFID           string `json:"of_id"`
	Format         string `json:"format"`
	DueDate        string `json:"due_date"`
	Priority       int    `json:"priority"`
	WorkNominalMin int    `json:"work_nominal_min"`
}

type workOrderCreateRequest struct {
	OFID           string `json:"of_id"`
	Format         string `json:"format"`
	DueDate        string `json:"due_date"`
	Priority       int    `json:"priority"`
	WorkNominalMin *int   `json:"work_nominal_min"`
}

// HandleWorkOrders lists the dispatch queue (GET) or admits a new
// order (POST). Admission appends to work_orders.csv before the order
// reaches the engine, so a persistence failure leaves the engine
// untouched.
func (s *Server) HandleWorkOrders(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		s.listWorkOrders(w, r)
		return
	}
	s.createWorkOrder(w, r)
}

func (s *Server) listWorkOrders(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 200)
	orders := s.engine.QueueOrders(limit)

	out := make([]workOrderOut, len(orders))
	for i, wo := range orders {
		out[i] = workOrderOut{
			OFID:           wo.OFID,
			Format:         wo.Format,
			DueDate:        engine.FormatMinute(wo.DueDate),
			Priority:       wo.Priority,
			WorkNominalMin: wo.NominalDurationMin,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req workOrderCreateRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.OFID == "" {
		writeError(w, http.StatusBadRequest, "of_id must not be empty")
		return
	}
	if req.Format == "" {
		writeError(w, http.StatusBadRequest, "format must not be empty")
		return
	}
	if s.engine.HasWorkOrder(req.OFID) {
		writeError(w, http.StatusConflict, fmt.Sprintf("work order %s already exists", req.OFID))
		return
	}

	now := s.engine.Now()
	due := now
	if req.DueDate != "" {
		var err error
		due, err = engine.ParseMinute(req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DDTHH:MM")
			return
		}
	}
	workNominalMin := 60
	if req.WorkNominalMin != nil {
		workNominalMin = *req.WorkNominalMin
	}
	if workNominalMin <= 0 {
		writeError(w, http.StatusBadRequest, "work_nominal_min must be > 0")
		return
	}

	wo := &engine.WorkOrder{
		OFID:               req.OFID,
		CreatedAt:          now,
		DueDate:            due,
		Priority:           req.Priority,
		Product:            "PRODUCT_" + req.Format,
		Format:             req.Format,
		NominalDurationMin: workNominalMin,
	}

	if s.datasetDir != "" {
		path := filepath.Join(s.datasetDir, dataset.WorkOrdersFile)
		if err := dataset.AppendWorkOrder(path, wo); err != nil {
			s.logger.Errorw("Failed to append work order to dataset",
				"of_id", wo.OFID,
				"path", path,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "failed to persist work order")
			return
		}
	}

	s.engine.AddWorkOrder(wo)

	writeJSON(w, http.StatusOK, workOrderOut{
		OFID:           wo.OFID,
		Format:         wo.Format,
		DueDate:        engine.FormatMinute(wo.DueDate),
		Priority:       wo.Priority,
		WorkNominalMin: wo.NominalDurationMin,
	})
}

type setupEntryRequest struct {
	FromFormat string `json:"from_format"`
	ToFormat   string `json:"to_format"`
	SetupMin   int    `json:"setup_min"`
}

// HandleSetupMatrix upserts one changeover pair. The active matrix is
// never mutated: a clone carries the new entry and is swapped in by
// pointer, then the dataset CSV is rewritten.
func (s *Server) HandleSetupMatrix(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req setupEntryRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.FromFormat == "" || req.ToFormat == "" {
		writeError(w, http.StatusBadRequest, "from_format and to_format must not be empty")
		return
	}
	if req.SetupMin < 0 {
		writeError(w, http.StatusBadRequest, "setup_min must be >= 0")
		return
	}

	matrix := s.engine.SetupMatrix().Clone()
	matrix.Set(req.FromFormat, req.ToFormat, req.SetupMin)
	s.engine.SwapSetupMatrix(matrix)

	if s.datasetDir != "" {
		path := filepath.Join(s.datasetDir, dataset.SetupMatrixFile)
		if err := dataset.SaveSetupMatrix(path, matrix); err != nil {
			s.logger.Errorw("Failed to rewrite setup matrix dataset",
				"path", path,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "failed to persist setup matrix")
			return
		}
	}

	s.logger.Infow("Setup matrix entry upserted",
		"from_format", req.FromFormat,
		"to_format", req.ToFormat,
		"setup_min", req.SetupMin,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"from_format": req.FromFormat,
		"to_format":   req.ToFormat,
		"setup_min":   req.SetupMin,
	})
}
