package drive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Drive implements Store on the Google Drive v3 API. All calls pass through
// a shared limiter to stay under the per-user request quota.
type Drive struct {
	svc     *drivev3.Service
	limiter *rate.Limiter
}

// New builds a Drive store. Credentials come from the given options, e.g.
// option.WithCredentialsFile; the client library handles token refresh.
func New(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(8), 4),
	}, nil
}

// escapeQuery escapes single quotes for Drive search query literals.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}

func (d *Drive) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}

	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	list, err := d.svc.Files.List().Q(query).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("searching for folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	meta := &drivev3.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	folder, err := d.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating folder %q: %w", name, err)
	}
	log.Printf("Created Drive folder %q with id %s", name, folder.Id)
	return folder.Id, nil
}

func (d *Drive) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	var files []File
	pageToken := ""
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		call := d.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
			Fields("nextPageToken, files(id, name, size, webViewLink)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", folderID, err)
		}
		for _, f := range list.Files {
			files = append(files, File{ID: f.Id, Name: f.Name, Size: f.Size, URL: f.WebViewLink})
		}
		pageToken = list.NextPageToken
		if pageToken == "" {
			return files, nil
		}
	}
}

func (d *Drive) UploadFile(ctx context.Context, folderID, localPath, name string) (File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return File{}, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	if err := d.limiter.Wait(ctx); err != nil {
		return File{}, err
	}

	meta := &drivev3.File{Name: name, Parents: []string{folderID}}
	created, err := d.svc.Files.Create(meta).
		Media(f, googleapi.ContentType(MimeType(name))).
		Fields("id, name, size, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return File{}, fmt.Errorf("uploading %s: %w", name, err)
	}
	return File{ID: created.Id, Name: created.Name, Size: created.Size, URL: created.WebViewLink}, nil
}

func (d *Drive) DeleteFile(ctx context.Context, fileID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := d.svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	return nil
}

// StorageQuota reports used and total bytes of the Drive account, for
// stats reporting.
func (d *Drive) StorageQuota(ctx context.Context) (used, total int64, err error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}
	about, err := d.svc.About.Get().Fields("storageQuota").Context(ctx).Do()
	if err != nil {
		return 0, 0, fmt.Errorf("fetching storage quota: %w", err)
	}
	if about.StorageQuota == nil {
		return 0, 0, nil
	}
	return about.StorageQuota.Usage, about.StorageQuota.Limit, nil
}

// Retryable reports whether a remote error is worth another attempt:
// rate limiting, server-side failures and plain network errors. Anything
// else (bad request, permissions, not found) is permanent.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return true
		}
		if apiErr.Code == 403 {
			for _, e := range apiErr.Errors {
				if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" {
					return true
				}
			}
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// MimeType guesses a media MIME type from a filename.
func MimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".aac":
		return "audio/aac"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
