package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/qna/common/logger"
)

const RemoteBackendName = "remote"

type GitLabOptions struct {
	BaseURL     string
	Token       string
	Project     string // numeric id or "group/project"
	Branch      string
	FilePath    string
	AuthorName  string
	AuthorEmail string
}

// GitLabBackend stores the collection as one file in a GitLab repository.
// The file's last commit id is the version token: updates carry it and GitLab
// rejects them when the file moved on in between.
type GitLabBackend struct {
	client *gitlab.Client
	opts   GitLabOptions
	mirror Backend
}

// NewGitLabBackend builds the remote backend. mirror, when non-nil, receives a
// best-effort copy of every successful write.
func NewGitLabBackend(opts GitLabOptions, mirror Backend) (*GitLabBackend, error) {
	if opts.Token == "" || opts.Project == "" {
		return nil, fmt.Errorf("gitlab backend: token and project are required")
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.FilePath == "" {
		return nil, fmt.Errorf("gitlab backend: file path is required")
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/") + "/api/v4"
	client, err := gitlab.NewClient(
		opts.Token,
		gitlab.WithBaseURL(baseURL),
		gitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &GitLabBackend{
		client: client,
		opts:   opts,
		mirror: mirror,
	}, nil
}

func (b *GitLabBackend) Name() string {
	return RemoteBackendName
}

func (b *GitLabBackend) Fetch(ctx context.Context) (Blob, error) {
	file, resp, err := b.client.RepositoryFiles.GetFile(
		b.opts.Project,
		b.opts.FilePath,
		&gitlab.GetFileOptions{Ref: gitlab.Ptr(b.opts.Branch)},
		gitlab.WithContext(ctx),
	)
	if err != nil {
		if errors.Is(err, gitlab.ErrNotFound) || (resp != nil && resp.StatusCode == http.StatusNotFound) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("get file: %w", err)
	}

	data, err := decodeFileContent(file)
	if err != nil {
		return Blob{}, err
	}

	return Blob{Data: data, Version: file.LastCommitID}, nil
}

// Store creates the file when blob.Version is empty and updates it otherwise.
// GitLab refusing either because the file already exists or changed since the
// token was issued is reported as ErrConflict. Any other rejection is a plain
// failure.
func (b *GitLabBackend) Store(ctx context.Context, blob Blob) error {
	content := string(blob.Data)

	var (
		resp *gitlab.Response
		err  error
	)
	if blob.Version == "" {
		_, resp, err = b.client.RepositoryFiles.CreateFile(b.opts.Project, b.opts.FilePath, &gitlab.CreateFileOptions{
			Branch:        gitlab.Ptr(b.opts.Branch),
			Content:       gitlab.Ptr(content),
			CommitMessage: gitlab.Ptr("Create questions collection"),
			AuthorName:    optional(b.opts.AuthorName),
			AuthorEmail:   optional(b.opts.AuthorEmail),
		}, gitlab.WithContext(ctx))
	} else {
		_, resp, err = b.client.RepositoryFiles.UpdateFile(b.opts.Project, b.opts.FilePath, &gitlab.UpdateFileOptions{
			Branch:        gitlab.Ptr(b.opts.Branch),
			Content:       gitlab.Ptr(content),
			CommitMessage: gitlab.Ptr("Update questions collection"),
			LastCommitID:  gitlab.Ptr(blob.Version),
			AuthorName:    optional(b.opts.AuthorName),
			AuthorEmail:   optional(b.opts.AuthorEmail),
		}, gitlab.WithContext(ctx))
	}
	if err != nil {
		if isWriteConflict(resp, err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return fmt.Errorf("write file: %w", err)
	}

	if b.mirror != nil {
		if err := b.mirror.Store(ctx, Blob{Data: blob.Data}); err != nil {
			mctx := logger.WithLogFields(ctx, logger.LogFields{Backend: b.mirror.Name()})
			slog.WarnContext(mctx, "mirror write failed", "error", err)
		}
	}
	return nil
}

// conflictMessages are the GitLab 400 messages that mean the file moved under
// us. Other 400s (unknown branch, invalid parameters) are misconfiguration.
var conflictMessages = []string{
	"has changed since you started editing it",
	"a file with this name already exists",
}

func isWriteConflict(resp *gitlab.Response, err error) bool {
	if resp == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		msg := err.Error()
		var errResp *gitlab.ErrorResponse
		if errors.As(err, &errResp) {
			msg = errResp.Message
		}
		msg = strings.ToLower(msg)
		for _, m := range conflictMessages {
			if strings.Contains(msg, m) {
				return true
			}
		}
	}
	return false
}

func decodeFileContent(file *gitlab.File) ([]byte, error) {
	if file.Encoding != "base64" {
		return []byte(file.Content), nil
	}
	data, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return nil, fmt.Errorf("decoding file content: %w", err)
	}
	return data, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
