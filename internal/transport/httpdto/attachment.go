package httpdto

type PresignUploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required,gt=0"`
}

type PresignDownloadRequest struct {
	ObjectKey string `json:"object_key" binding:"required"`
}

type PresignDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}
