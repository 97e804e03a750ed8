// Package service implements the claim lifecycle operations. Every mutation
// loads the collection, changes one record, appends exactly one history
// entry and persists, inside the store's single-writer critical section.
package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/savline-dev/savline/internal/blob"
	"github.com/savline-dev/savline/internal/claim"
	"github.com/savline-dev/savline/internal/notify"
	"github.com/savline-dev/savline/internal/store"
)

// ErrValidation signals a malformed submission.
var ErrValidation = errors.New("service: validation failed")

// Upload is one incoming file, decoupled from multipart specifics.
type Upload struct {
	OriginalName string
	Reader       io.Reader
}

// Service wires the record store, the attachment manager and the outbound
// notification queue. It keeps a storage-name index so attachment lookups
// do not rescan every record.
type Service struct {
	store     store.Store
	blobs     *blob.Manager
	publisher notify.Publisher
	routes    notify.Routes

	mu    sync.RWMutex
	index map[string]claim.Attachment
}

// New creates the lifecycle service and builds the attachment index from the
// current collection.
func New(st store.Store, blobs *blob.Manager, pub notify.Publisher, routes notify.Routes) (*Service, error) {
	s := &Service{store: st, blobs: blobs, publisher: pub, routes: routes}
	if err := s.Reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reindex rebuilds the storage-name index from the persisted collection.
// Called at startup and after a backup import swaps the store out from
// under the service.
func (s *Service) Reindex() error {
	claims, err := s.store.LoadAll()
	if err != nil {
		return err
	}

	index := make(map[string]claim.Attachment)
	for _, rec := range claims {
		for _, att := range rec.Files {
			index[att.StorageName] = att
		}
		for _, att := range rec.ResponseFiles {
			index[att.StorageName] = att
		}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	return nil
}

func (s *Service) indexAttachments(atts []claim.Attachment) {
	s.mu.Lock()
	for _, att := range atts {
		s.index[att.StorageName] = att
	}
	s.mu.Unlock()
}

// SubmitParams carries a public claim submission.
type SubmitParams struct {
	CustomerName   string
	Email          string
	StoreID        string
	Product        string
	PartNumber     string
	VehicleMake    string
	VehicleModel   string
	VehicleYear    string
	ProblemSummary string
	ProblemDetails string
	Documents      []Upload
}

// Submit validates and persists a new claim, then queues a notification to
// the claim's store.
func (s *Service) Submit(params SubmitParams) (claim.Claim, error) {
	if strings.TrimSpace(params.CustomerName) == "" {
		return claim.Claim{}, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if !strings.Contains(params.Email, "@") {
		return claim.Claim{}, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if strings.TrimSpace(params.StoreID) == "" {
		return claim.Claim{}, fmt.Errorf("%w: store is required", ErrValidation)
	}

	attachments, err := s.storeUploads(params.Documents)
	if err != nil {
		return claim.Claim{}, err
	}

	rec := claim.Claim{
		ID:             s.store.NewID(),
		CustomerName:   params.CustomerName,
		Email:          params.Email,
		StoreID:        params.StoreID,
		Product:        params.Product,
		PartNumber:     params.PartNumber,
		VehicleMake:    params.VehicleMake,
		VehicleModel:   params.VehicleModel,
		VehicleYear:    params.VehicleYear,
		ProblemSummary: params.ProblemSummary,
		ProblemDetails: params.ProblemDetails,
		Status:         claim.StatusRegistered,
		Files:          blob.Dedupe(nil, attachments),
	}
	rec.Normalize()
	rec.AppendHistory("Claim created")
	rec.CreatedAt = rec.History[0].Timestamp

	err = s.store.Update(func(claims []claim.Claim) ([]claim.Claim, error) {
		return append(claims, rec), nil
	})
	if err != nil {
		return claim.Claim{}, err
	}
	s.indexAttachments(rec.Files)

	s.publisher.Publish(notify.Event{
		To:      s.routes.StoreAddress(rec.StoreID),
		Subject: fmt.Sprintf("New warranty claim %s", rec.ID),
		Body: fmt.Sprintf("Customer: %s <%s>\nStore: %s\nProduct: %s\nProblem: %s\n",
			rec.CustomerName, rec.Email, rec.StoreID, rec.Product, rec.ProblemSummary),
	})
	return rec, nil
}

// ListByEmail returns the customer's claims, matching the stored email
// case-insensitively. An empty query yields an empty result, no error.
func (s *Service) ListByEmail(email string) ([]claim.Claim, error) {
	matches := []claim.Claim{}
	if email == "" {
		return matches, nil
	}

	claims, err := s.store.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range claims {
		if strings.EqualFold(rec.Email, email) {
			rec.Normalize()
			matches = append(matches, rec)
		}
	}
	return matches, nil
}

// Get returns one claim by id.
func (s *Service) Get(id string) (claim.Claim, error) {
	claims, err := s.store.LoadAll()
	if err != nil {
		return claim.Claim{}, err
	}
	for _, rec := range claims {
		if rec.ID == id {
			rec.Normalize()
			return rec, nil
		}
	}
	return claim.Claim{}, claim.ErrNotFound
}

// ListAll returns the full collection, for the admin dashboard data feed.
func (s *Service) ListAll() ([]claim.Claim, error) {
	claims, err := s.store.LoadAll()
	if err != nil {
		return nil, err
	}
	for i := range claims {
		claims[i].Normalize()
	}
	return claims, nil
}

// AddClientDocuments appends customer files to an existing claim. Files whose
// original name already appears among the claim's customer files are dropped.
func (s *Service) AddClientDocuments(id string, documents []Upload) error {
	attachments, err := s.storeUploads(documents)
	if err != nil {
		return err
	}

	var kept []claim.Attachment
	err = s.store.Update(func(claims []claim.Claim) ([]claim.Claim, error) {
		rec := findClaim(claims, id)
		if rec == nil {
			return nil, claim.ErrNotFound
		}
		kept = blob.Dedupe(rec.Files, attachments)
		rec.Files = append(rec.Files, kept...)
		rec.AppendHistory("Document added by client")
		return claims, nil
	})
	if err != nil {
		return err
	}
	s.indexAttachments(kept)
	return nil
}

// UpdateParams carries an admin review update. Status is applied only when
// non-empty and valid; Response only when non-empty — an empty response
// string never clears a stored response.
type UpdateParams struct {
	Status    string
	Response  string
	Documents []Upload
}

// AdminUpdate applies a review update and queues a customer notification.
func (s *Service) AdminUpdate(id string, params UpdateParams) (claim.Claim, error) {
	if params.Status != "" && !claim.Status(params.Status).Valid() {
		return claim.Claim{}, claim.ErrInvalidStatus
	}

	attachments, err := s.storeUploads(params.Documents)
	if err != nil {
		return claim.Claim{}, err
	}

	var (
		updated claim.Claim
		kept    []claim.Attachment
	)
	err = s.store.Update(func(claims []claim.Claim) ([]claim.Claim, error) {
		rec := findClaim(claims, id)
		if rec == nil {
			return nil, claim.ErrNotFound
		}
		if params.Status != "" {
			rec.Status = claim.Status(params.Status)
		}
		if params.Response != "" {
			response := params.Response
			rec.Response = &response
		}
		kept = blob.Dedupe(rec.ResponseFiles, attachments)
		rec.ResponseFiles = append(rec.ResponseFiles, kept...)
		rec.AppendHistory("Status changed or response added by admin")
		updated = *rec
		return claims, nil
	})
	if err != nil {
		return claim.Claim{}, err
	}
	s.indexAttachments(kept)

	if updated.Email != "" {
		s.publisher.Publish(notify.Event{
			To:      updated.Email,
			Subject: fmt.Sprintf("Update on your warranty claim %s", updated.ID),
			Body: fmt.Sprintf("Product: %s\nStatus: %s\n",
				updated.Product, updated.Status),
		})
	}
	updated.Normalize()
	return updated, nil
}

// ResolveAttachment maps a storage name back to its attachment metadata via
// the index. Unknown names fail here, before any disk access.
func (s *Service) ResolveAttachment(storageName string) (claim.Attachment, error) {
	s.mu.RLock()
	att, ok := s.index[storageName]
	s.mu.RUnlock()
	if !ok {
		return claim.Attachment{}, claim.ErrAttachmentNotFound
	}
	return att, nil
}

func (s *Service) storeUploads(uploads []Upload) ([]claim.Attachment, error) {
	var attachments []claim.Attachment
	for _, up := range uploads {
		att, err := s.blobs.Store(up.OriginalName, up.Reader)
		if err != nil {
			return nil, fmt.Errorf("service: store upload %q: %w", up.OriginalName, err)
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

func findClaim(claims []claim.Claim, id string) *claim.Claim {
	for i := range claims {
		if claims[i].ID == id {
			return &claims[i]
		}
	}
	return nil
}
