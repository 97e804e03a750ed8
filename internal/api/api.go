// Package api exposes the claim lifecycle over HTTP.
package api

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savline-dev/savline/internal/backup"
	"github.com/savline-dev/savline/internal/blob"
	"github.com/savline-dev/savline/internal/claim"
	"github.com/savline-dev/savline/internal/service"
	"github.com/savline-dev/savline/internal/session"
)

// SessionCookie is the cookie carrying the admin session token.
const SessionCookie = "savline_session"

// MaxDocuments caps the number of files accepted in one request.
const MaxDocuments = 10

type Handler struct {
	Claims   *service.Service
	Sessions *session.Guard
	Blobs    *blob.Manager
	Backup   *backup.Archiver
}

func (h *Handler) SubmitClaim(c *gin.Context) {
	uploads, closeAll, err := formUploads(c, "documents")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closeAll()

	rec, err := h.Claims.Submit(service.SubmitParams{
		CustomerName:   c.PostForm("customer_name"),
		Email:          c.PostForm("email"),
		StoreID:        c.PostForm("store"),
		Product:        c.PostForm("product"),
		PartNumber:     c.PostForm("part_number"),
		VehicleMake:    c.PostForm("vehicle_make"),
		VehicleModel:   c.PostForm("vehicle_model"),
		VehicleYear:    c.PostForm("vehicle_year"),
		ProblemSummary: c.PostForm("problem_summary"),
		ProblemDetails: c.PostForm("problem_details"),
		Documents:      uploads,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": rec.ID})
}

func (h *Handler) ListClaims(c *gin.Context) {
	claims, err := h.Claims.ListByEmail(c.Query("email"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, claims)
}

func (h *Handler) AddDocuments(c *gin.Context) {
	uploads, closeAll, err := formUploads(c, "documents")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closeAll()

	if err := h.Claims.AddClientDocuments(c.Param("id"), uploads); err != nil {
		if errors.Is(err, claim.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Download(c *gin.Context) {
	att, err := h.Claims.ResolveAttachment(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	f, err := h.Blobs.Open(att.StorageName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), h.Blobs.ContentType(att), f, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", att.OriginalName),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var creds struct {
		User string `form:"user" json:"user"`
		Pass string `form:"pass" json:"pass"`
	}
	if err := c.ShouldBind(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.Sessions.Login(creds.User, creds.Pass)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.SetCookie(SessionCookie, token, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		h.Sessions.Logout(token)
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetClaim(c *gin.Context) {
	rec, err := h.Claims.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, claim.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListAllClaims feeds the admin dashboard; rendering happens client-side.
func (h *Handler) ListAllClaims(c *gin.Context) {
	claims, err := h.Claims.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, claims)
}

func (h *Handler) UpdateClaim(c *gin.Context) {
	uploads, closeAll, err := formUploads(c, "documents")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer closeAll()

	rec, err := h.Claims.AdminUpdate(c.Param("id"), service.UpdateParams{
		Status:    c.PostForm("status"),
		Response:  c.PostForm("response"),
		Documents: uploads,
	})
	switch {
	case errors.Is(err, claim.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "claim not found"})
	case errors.Is(err, claim.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "status": rec.Status})
	}
}

func (h *Handler) Export(c *gin.Context) {
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="savline-backup.zip"`)
	if err := h.Backup.Export(c.Writer); err != nil {
		// Headers are already on the wire; all we can do is log.
		log.Printf("api: export failed: %v", err)
	}
}

func (h *Handler) Import(c *gin.Context) {
	header, err := c.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive file is required"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	if err := h.Backup.Import(f, header.Size); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, backup.ErrBadArchive) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if err := h.Claims.Reindex(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// formUploads opens the named multipart files and returns them as service
// uploads with a single close function.
func formUploads(c *gin.Context, field string) ([]service.Upload, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, nil, err
	}

	headers := form.File[field]
	if len(headers) > MaxDocuments {
		return nil, nil, fmt.Errorf("at most %d documents per request", MaxDocuments)
	}

	var (
		uploads []service.Upload
		opened  []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{OriginalName: header.Filename, Reader: f})
	}
	return uploads, closeAll, nil
}
