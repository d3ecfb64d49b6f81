package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"flacify/internal/converter"
)

type ConvertRequest struct {
	SourcePath    string `json:"source_path"`
	OutputDir     string `json:"output_dir,omitempty"`
	Compatibility *bool  `json:"compatibility,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
}

type JobResponse struct {
	ID          string         `json:"id"`
	SourcePath  string         `json:"source_path"`
	OutputDir   string         `json:"output_dir,omitempty"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
	Failed      int            `json:"failed"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	Stats       *StatsResponse `json:"stats,omitempty"`
}

type StatsResponse struct {
	Converted   int            `json:"converted"`
	CopiedFLAC  int            `json:"copied_flac"`
	Failed      int            `json:"failed"`
	TagsWritten int            `json:"tags_written"`
	TagsFailed  int            `json:"tags_failed"`
	Provenance  map[string]int `json:"provenance,omitempty"`
	ElapsedMS   int64          `json:"elapsed_ms"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.SourcePath == "" {
		http.Error(w, "source_path is required", http.StatusBadRequest)
		return
	}

	// Per-job config starts from the server config and overlays the
	// request options
	jobConfig := s.config
	if req.OutputDir != "" {
		jobConfig.OutputDir = req.OutputDir
	}
	if req.Compatibility != nil {
		jobConfig.CompatibilityMode = *req.Compatibility
	}
	if req.DryRun {
		jobConfig.DryRun = true
	}

	job := s.jobMgr.CreateJob(req.SourcePath, jobConfig)
	s.logger.Info("Created job %s for %s", job.ID, req.SourcePath)

	// Start conversion in background
	go s.processJob(job)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id} or /api/jobs/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Handle GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.jobToResponse(job))
		return
	}

	// Handle POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if job.Cancel != nil {
			job.Cancel()
		}

		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (s *Server) processJob(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store cancel function in job
	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	s.logger.Info("Starting job %s", job.ID)

	conv, err := converter.New(job.SourcePath, job.Config, s.logger)
	if err != nil {
		s.logger.Error("Job %s setup failed: %v", job.ID, err)
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.OutputDir = conv.OutputDir()
	})

	hooks := converter.Hooks{
		OnFilesFound: func(total int) {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Total = total
			})
		},
		OnProgress: func() {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Progress++
			})
		},
		OnWarning: func(msg string) {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Failed++
			})
		},
	}

	stats, err := conv.Run(ctx, hooks)
	if err != nil {
		status := StatusFailed
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		s.logger.Error("Job %s failed: %v", job.ID, err)
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = status
			j.Error = err.Error()
			j.Stats = &stats
		})
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Failed = stats.Failed
		j.Stats = &stats
	})

	s.logger.Info("Job %s completed: %d converted, %d failed", job.ID, stats.Converted, stats.Failed)
}

func (s *Server) jobToResponse(job *Job) *JobResponse {
	resp := &JobResponse{
		ID:         job.ID,
		SourcePath: job.SourcePath,
		OutputDir:  job.OutputDir,
		Status:     job.Status,
		Progress:   job.Progress,
		Total:      job.Total,
		Failed:     job.Failed,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	if job.Stats != nil {
		resp.Stats = &StatsResponse{
			Converted:   job.Stats.Converted,
			CopiedFLAC:  job.Stats.CopiedFLAC,
			Failed:      job.Stats.Failed,
			TagsWritten: job.Stats.TagsWritten,
			TagsFailed:  job.Stats.TagsFailed,
			Provenance:  job.Stats.Provenance,
			ElapsedMS:   job.Stats.Elapsed.Milliseconds(),
		}
	}

	return resp
}
