package cloudinary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// RootFolder prefixes every folder handled by the drive.
	RootFolder string
}

// File describes a stored raw asset.
type File struct {
	PublicID string `json:"id"`
	Name     string `json:"name"`
	Folder   string `json:"folder"`
	URL      string `json:"url"`
}

// Drive stores generated reports as raw assets inside a folder tree.
type Drive struct {
	client *cloudinary.Cloudinary
	root   string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed drive.
func New(cfg Config, logger zerolog.Logger) (*Drive, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Drive{
		client: cld,
		root:   cleanFolder(cfg.RootFolder),
		logger: logger.With().Str("component", "cloudinary_drive").Logger(),
	}, nil
}

// EnsureFolder creates the folder (relative to the root) when missing and returns its full path.
func (d *Drive) EnsureFolder(ctx context.Context, folder string) (string, error) {
	full := d.fullFolder(folder)
	result, err := d.client.Admin.CreateFolder(ctx, admin.CreateFolderParams{Folder: full})
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", full, err)
	}
	if result != nil && result.Error.Message != "" && !strings.Contains(strings.ToLower(result.Error.Message), "already exists") {
		return "", fmt.Errorf("failed to create folder %q: %s", full, result.Error.Message)
	}
	return full, nil
}

// Exists reports whether a file with exactly this name is stored in folder.
func (d *Drive) Exists(ctx context.Context, folder, name string) (bool, error) {
	publicID := BuildPublicID(d.fullFolder(folder), name)
	result, err := d.client.Admin.Asset(ctx, admin.AssetParams{
		PublicID:     publicID,
		AssetType:    api.File,
		DeliveryType: api.Upload,
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up %q: %w", publicID, err)
	}
	if result == nil || result.Error.Message != "" {
		return false, nil
	}
	return result.PublicID != "", nil
}

// Put uploads content under folder/name. With overwrite the existing asset is replaced in
// place, keeping its public id.
func (d *Drive) Put(ctx context.Context, folder, name string, content []byte, overwrite bool) (File, error) {
	full := d.fullFolder(folder)
	publicID := BuildPublicID(full, name)

	result, err := d.client.Upload.Upload(ctx, bytes.NewReader(content), uploader.UploadParams{
		PublicID:       publicID,
		ResourceType:   "raw",
		Overwrite:      api.Bool(overwrite),
		UniqueFilename: api.Bool(false),
		Invalidate:     api.Bool(overwrite),
	})
	if err != nil {
		return File{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return File{}, errors.New("failed to upload asset: " + result.Error.Message)
	}

	d.logger.Info().Str("public_id", result.PublicID).Bool("overwrite", overwrite).Msg("file stored in cloudinary")

	return File{PublicID: result.PublicID, Name: name, Folder: full, URL: result.SecureURL}, nil
}

func (d *Drive) fullFolder(folder string) string {
	folder = cleanFolder(folder)
	if d.root == "" {
		return folder
	}
	if folder == "" {
		return d.root
	}
	return d.root + "/" + folder
}

// BuildPublicID joins folder and name into a public id, replacing characters the API rejects.
func BuildPublicID(folder, name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '?', '&', '#', '%', '<', '>':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func cleanFolder(folder string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+folder), "/")
}
