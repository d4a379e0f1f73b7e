// Package scans implements the REST API handlers for repository registration, scans and reports.
package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/ortelius/pdvd-reposcan/internal/services"
	"github.com/ortelius/pdvd-reposcan/model"
	"github.com/ortelius/pdvd-reposcan/util"
	"go.uber.org/zap"
)

// FormFiles is the multipart field carrying the dependency listings
const FormFiles = "dependencyFile[]"

// Registry stores the repositories subscribed to notifications
type Registry interface {
	UpsertRegisteredRepo(ctx context.Context, repo model.RegisteredRepo) error
	FindRegisteredRepo(ctx context.Context, repoURL string) (*model.RegisteredRepo, error)
}

// Results reads stored scan outcomes
type Results interface {
	FindScanResult(ctx context.Context, requestID string) (*model.ScanResult, error)
	LatestReport(ctx context.Context, repoURL string) (*model.StoredReport, error)
}

// Queue hands scan requests to the worker
type Queue interface {
	PublishScanRequested(ctx context.Context, req model.ScanRequest) (string, error)
}

// Handlers serves the scan routes. Queue may be nil, in which case every scan runs inline.
type Handlers struct {
	Registry Registry
	Results  Results
	Queue    Queue
	Scanner  services.Scanner
	Logger   *zap.Logger
}

// RegisterRequest is the body of POST /register. The github_* names are accepted as aliases.
type RegisterRequest struct {
	GitURL     string `json:"git-url"`
	GitSha     string `json:"git-sha"`
	EmailIDs   string `json:"email-ids"`
	GithubRepo string `json:"github_repo"`
	GithubSha  string `json:"github_sha"`
	GithubMail string `json:"email_ids"`
}

func (r RegisterRequest) normalized() model.RegisteredRepo {
	repo := model.RegisteredRepo{RepoURL: r.GitURL, GitSha: r.GitSha, EmailIDs: r.EmailIDs}
	if repo.RepoURL == "" {
		repo.RepoURL = r.GithubRepo
	}
	if repo.GitSha == "" {
		repo.GitSha = r.GithubSha
	}
	if repo.EmailIDs == "" {
		repo.EmailIDs = r.GithubMail
	}
	repo.RepoURL = strings.TrimSpace(repo.RepoURL)
	repo.GitSha = strings.TrimSpace(repo.GitSha)
	return repo
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// Register adds a repository to the registry or refreshes its sha and recipients
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	repo := req.normalized()
	if util.IsEmpty(repo.RepoURL) {
		return badRequest(c, "git-url cannot be empty")
	}
	if util.IsEmpty(repo.GitSha) {
		return badRequest(c, "git-sha cannot be empty")
	}
	if util.IsEmpty(repo.EmailIDs) {
		return badRequest(c, "email-ids cannot be empty")
	}

	if err := h.Registry.UpsertRegisteredRepo(c.UserContext(), repo); err != nil {
		h.logger().Error("Failed to register repository", zap.String("repo_url", repo.RepoURL), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("New repo registration failed as %s", err.Error()),
		})
	}

	return c.JSON(fiber.Map{"message": fmt.Sprintf("%s successfully registered", repo.RepoURL)})
}

// PostScan accepts either a JSON ScanRequest or a multipart upload of dependency listings.
// With ?sync=true the pipeline runs inline and the result is returned.
func (h *Handlers) PostScan(c *fiber.Ctx) error {
	req, notifySet, err := h.scanRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx := c.UserContext()

	// registered repositories are notified unless the caller says otherwise
	if h.Registry != nil {
		registered, err := h.Registry.FindRegisteredRepo(ctx, req.RepoURL)
		switch {
		case err != nil:
			h.logger().Warn("Registry lookup failed", zap.String("repo_url", req.RepoURL), zap.Error(err))
		case registered != nil:
			if req.EmailIDs == "" {
				req.EmailIDs = registered.EmailIDs
			}
			if !notifySet {
				req.Notify = true
			}
		}
	}

	if h.Queue == nil || c.QueryBool("sync", false) {
		if req.RequestID == "" {
			req.RequestID = uuid.New().String()
		}
		result, err := h.Scanner.Scan(ctx, req)
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, services.ErrInvalidRequest) {
				status = fiber.StatusBadRequest
			}
			return c.Status(status).JSON(fiber.Map{
				"error":      err.Error(),
				"request_id": result.RequestID,
			})
		}
		return c.JSON(result)
	}

	// reject what the worker would only drop
	if _, err := services.Dependencies(req); err != nil {
		return badRequest(c, err.Error())
	}

	requestID, err := h.Queue.PublishScanRequested(ctx, req)
	if err != nil {
		h.logger().Error("Failed to queue scan", zap.String("repo_url", req.RepoURL), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "New repo scan initialization failed as " + err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"request_id": requestID})
}

// scanRequest decodes the request; notifySet reports whether the caller chose notify explicitly
func (h *Handlers) scanRequest(c *fiber.Ctx) (req model.ScanRequest, notifySet bool, err error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&req); err != nil {
			return req, false, errors.New("Invalid request body")
		}
		var explicit struct {
			Notify *bool `json:"notify"`
		}
		if err := json.Unmarshal(c.Body(), &explicit); err == nil {
			notifySet = explicit.Notify != nil
		}
	} else {
		req.RepoURL = c.FormValue("git-url")
		req.GitSha = c.FormValue("git-sha")
		req.EmailIDs = c.FormValue("email-ids")
		req.Ecosystem = c.FormValue("ecosystem")
		req.RequestID = c.FormValue("request-id")

		form, err := c.MultipartForm()
		if err != nil {
			return req, false, errors.New("expected a multipart form with dependency files")
		}
		for _, fh := range form.File[FormFiles] {
			f, err := fh.Open()
			if err != nil {
				return req, false, fmt.Errorf("reading %s: %w", fh.Filename, err)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return req, false, fmt.Errorf("reading %s: %w", fh.Filename, err)
			}
			req.Files = append(req.Files, model.ManifestFile{Name: fh.Filename, Content: content})
		}
	}

	req.RepoURL = strings.TrimSpace(req.RepoURL)
	if req.RepoURL == "" {
		return req, false, errors.New("git-url cannot be empty")
	}
	if notify := firstNonEmpty(c.FormValue("notify"), c.Query("notify")); notify != "" {
		b, err := strconv.ParseBool(notify)
		if err != nil {
			return req, false, fmt.Errorf("notify: %w", err)
		}
		req.Notify = b
		notifySet = true
	}
	return req, notifySet, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetScan returns the stored result of a scan request
func (h *Handlers) GetScan(c *fiber.Ctx) error {
	result, err := h.Results.FindScanResult(c.UserContext(), c.Params("request_id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if result == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "scan not found"})
	}
	return c.JSON(result)
}

// GetReport returns the latest stored report of the repository given by ?repo=
func (h *Handlers) GetReport(c *fiber.Ctx) error {
	repoURL := c.Query("repo")
	if repoURL == "" {
		return badRequest(c, "repo cannot be empty")
	}

	report, err := h.Results.LatestReport(c.UserContext(), repoURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no report for " + repoURL})
	}
	return c.JSON(report)
}
