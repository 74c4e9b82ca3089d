package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/transcription"
)

// DataResponse is the standard success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// JobResponse carries a job view and, for failed jobs, the error body.
type JobResponse struct {
	Data  transcription.JobView `json:"data"`
	Error *apperrors.ErrorBody  `json:"error,omitempty"`
}

// RespondWithError inspects err: if it is an *apperrors.AppError the status and
// structured body are derived automatically; otherwise a generic 500 is sent.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondJob sends a finished job: 200 when completed, otherwise the status
// of the job's error with both the view and the error body.
func RespondJob(c *gin.Context, job *transcription.Job) {
	view := job.View()
	appErr := job.Err()
	if appErr == nil {
		c.JSON(http.StatusOK, JobResponse{Data: view})
		return
	}
	body := appErr.ToResponse().Error
	c.JSON(appErr.HTTPStatus, JobResponse{Data: view, Error: &body})
}
