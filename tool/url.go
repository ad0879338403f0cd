package tool

import (
	"fmt"
	"net/url"
)

const (
	PathUploadChunk    = "/upload/chunk"
	PathUploadFinalize = "/upload/finalize"
	PathBulkUpload     = "/bulk/upload"
	PathLogin          = "/login"
)

// BuildStoreURL joins an endpoint path onto the remote store base URL.
func BuildStoreURL(baseURL, endpoint string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("remote store URL is not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	return u.JoinPath(endpoint).String(), nil
}

func BuildChunkURL(baseURL string) (string, error) {
	return BuildStoreURL(baseURL, PathUploadChunk)
}

func BuildFinalizeURL(baseURL string) (string, error) {
	return BuildStoreURL(baseURL, PathUploadFinalize)
}

func BuildBulkUploadURL(baseURL string) (string, error) {
	return BuildStoreURL(baseURL, PathBulkUpload)
}

func BuildLoginURL(baseURL string) (string, error) {
	return BuildStoreURL(baseURL, PathLogin)
}
