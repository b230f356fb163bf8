package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/media"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

var documentKindPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,39}$`)

// DocumentUpload is one photo captured for a lease party.
type DocumentUpload struct {
	Party   string `json:"party" binding:"required,oneof=tenant owner guarantor"`
	Kind    string `json:"kind" binding:"required"`
	DataURL string `json:"data" binding:"required"`
}

// DocumentService stores identity and proof-of-income photos and records
// them on the data-entry step.
type DocumentService struct {
	state       *WizardStateService
	processor   *media.ImageProcessor
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewDocumentService creates the document service.
func NewDocumentService(state *WizardStateService, processor *media.ImageProcessor, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *DocumentService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if perfTracker == nil {
		perfTracker = performance.NewTracker(nil)
	}
	return &DocumentService{state: state, processor: processor, logger: logger, perfTracker: perfTracker}
}

// Upload normalises the photo and attaches it to the party. A document of
// the same kind replaces the previous one.
func (s *DocumentService) Upload(ctx context.Context, key string, up DocumentUpload) (*wizard.DocumentRef, *wizard.State, error) {
	if !documentKindPattern.MatchString(up.Kind) {
		return nil, nil, &InputError{Step: wizard.StepDataEntry, Fields: map[string]string{"kind": "invalid"}}
	}
	if !validParty(up.Party) {
		return nil, nil, &InputError{Step: wizard.StepDataEntry, Fields: map[string]string{"party": "oneof"}}
	}
	current := s.state.GetState(ctx, key)
	party := partyOf(current.StepData.DataEntry, up.Party)

	marker := s.perfTracker.StartOperation("document_upload", logging.MaskID(current.SessionID))
	defer marker.Complete()

	raw, err := media.DecodeDataURL(up.DataURL)
	if err != nil {
		marker.SetError(err)
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id := security.GenerateULID()
	stored, err := s.processor.Store(raw, current.SessionID+"/"+up.Party, up.Kind+"-"+id)
	if err != nil {
		marker.SetError(err)
		return nil, nil, err
	}

	ref := wizard.DocumentRef{
		ID:          id,
		Kind:        up.Kind,
		Path:        stored.Path,
		ContentType: "image/webp",
		Width:       stored.Width,
		Height:      stored.Height,
		Size:        stored.Size,
	}

	next := &wizard.PartyData{}
	if party != nil {
		next = party
	}
	docs := make([]wizard.DocumentRef, 0, len(next.Documents)+1)
	for _, d := range next.Documents {
		if d.Kind != up.Kind {
			docs = append(docs, d)
		}
	}
	next.Documents = append(docs, ref)

	entry := &wizard.DataEntryData{}
	setParty(entry, up.Party, next)
	state := s.state.SaveState(ctx, key, wizard.Patch{StepData: wizard.StepData{DataEntry: entry}})

	marker.SetSuccess(true)
	s.logger.Wizard().Info("Document stored", "sessionId", logging.MaskID(state.SessionID), "party", up.Party, "kind", up.Kind, "bytes", stored.Size)
	return &ref, state, nil
}

// Path resolves a stored document of the session to a file on disk.
func (s *DocumentService) Path(ctx context.Context, key, documentID string) (string, error) {
	state := s.state.GetState(ctx, key)
	entry := state.StepData.DataEntry
	if entry == nil {
		return "", fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	for _, p := range []*wizard.PartyData{entry.Tenant, entry.Owner, entry.Guarantor} {
		if p == nil {
			continue
		}
		for _, d := range p.Documents {
			if d.ID == documentID {
				return s.processor.Open(d.Path)
			}
		}
	}
	return "", fmt.Errorf("%w: document %s", ErrNotFound, documentID)
}

// Purge removes every stored document of a session.
func (s *DocumentService) Purge(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.processor.Remove(sessionID)
}

func validParty(party string) bool {
	switch party {
	case "tenant", "owner", "guarantor":
		return true
	}
	return false
}

func partyOf(entry *wizard.DataEntryData, party string) *wizard.PartyData {
	if entry == nil {
		return nil
	}
	var p *wizard.PartyData
	switch party {
	case "tenant":
		p = entry.Tenant
	case "owner":
		p = entry.Owner
	case "guarantor":
		p = entry.Guarantor
	}
	if p == nil {
		return nil
	}
	c := *p
	c.Documents = append([]wizard.DocumentRef(nil), p.Documents...)
	return &c
}

func setParty(entry *wizard.DataEntryData, party string, p *wizard.PartyData) {
	switch party {
	case "tenant":
		entry.Tenant = p
	case "owner":
		entry.Owner = p
	case "guarantor":
		entry.Guarantor = p
	}
}
