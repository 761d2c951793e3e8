package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Allocation editor
	r.HandleFunc("/api/allocation/catalog", deps.AllocationHandler.GetCatalog).Methods("GET")
	r.HandleFunc("/api/allocation/draft/new", deps.AllocationHandler.NewDraft).Methods("GET")
	r.HandleFunc("/api/allocation/draft/{year:[0-9]+}", deps.AllocationHandler.EditDraft).Methods("GET")
	r.HandleFunc("/api/allocation/draft", deps.AllocationHandler.ApplyAction).Methods("POST")
	r.HandleFunc("/api/allocation", deps.AllocationHandler.Submit).Methods("POST")

	// Allocation report
	r.HandleFunc("/api/allocation/plans", deps.ReportHandler.ListPlans).Methods("GET")
	r.HandleFunc("/api/allocation/plans/{year:[0-9]+}", deps.ReportHandler.GetYearDetail).Methods("GET")
	r.HandleFunc("/api/allocation/plans/{year:[0-9]+}/breakdown", deps.ReportHandler.GetBreakdown).Queries("taxonomy", "{taxonomy}").Methods("GET")
	r.HandleFunc("/api/allocation/view", deps.ReportHandler.GetView).Methods("GET")
	r.HandleFunc("/api/allocation/view", deps.ReportHandler.CloseDetail).Methods("DELETE")
	r.HandleFunc("/api/allocation/view/{year:[0-9]+}", deps.ReportHandler.OpenDetail).Methods("POST")
	r.HandleFunc("/api/allocation/cache", deps.ReportHandler.InvalidateCache).Methods("DELETE")
	r.HandleFunc("/api/allocation/cache/{year:[0-9]+}", deps.ReportHandler.InvalidateCache).Methods("DELETE")
}
