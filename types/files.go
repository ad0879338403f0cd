package types

import "io"

// FileDescriptor is the remote store's record of a registered file.
type FileDescriptor struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
}

// FailedUpload is one per-file failure reported inside a bulk upload response.
type FailedUpload struct {
	FileName string `json:"file_name"`
	Path     string `json:"path,omitempty"`
	Error    string `json:"error"`
}

// ChunkUpload is the payload of POST /upload/chunk.
// Data is rewound before every attempt so a chunk can be resent as is.
type ChunkUpload struct {
	SessionID  string
	ChunkIndex int
	Data       io.ReadSeeker
	Size       int64
}

// FinalizeRequest is the JSON body of POST /upload/finalize.
// ParentFolderID is sent as null when it is nil.
type FinalizeRequest struct {
	SessionID      string  `json:"upload_id"`
	FileName       string  `json:"file_name"`
	TotalChunks    int     `json:"total_chunks"`
	ParentFolderID *string `json:"parent_folder_id"`
	RelativePath   string  `json:"file_path"`
}

// BatchFile is one file part of a bulk upload.
type BatchFile struct {
	FileName     string
	RelativePath string
	Content      io.ReadSeeker
	Size         int64
}

// BatchUpload is the payload of POST /bulk/upload.
type BatchUpload struct {
	Files          []BatchFile
	ParentFolderID string
}

// BatchResponse is returned by both /bulk/upload and /upload/finalize.
type BatchResponse struct {
	SuccessfulUploads []FileDescriptor `json:"successful_uploads"`
	FailedUploads     []FailedUpload   `json:"failed_uploads"`
}

// TokenResponse is returned by POST /login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the account encoded in the access token's claims.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}
