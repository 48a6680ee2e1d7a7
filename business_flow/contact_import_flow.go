// Package businessflow contains the core business logic and use cases for contact import workflows
package businessflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/amirphl/Susanoo/utils"
	"github.com/lib/pq"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ContactImportFlow handles contact imports into campaigns. Phones are
// normalized before any uniqueness decision, duplicates are skipped silently
// (per customer, across all their campaigns), and invalid phones are rejected
// row by row without failing the batch.
type ContactImportFlow interface {
	ImportContacts(ctx context.Context, req *dto.ImportContactsRequest) (*dto.ImportContactsResponse, error)
	ImportContactsFromXLSX(ctx context.Context, customerID, campaignID uint, file io.Reader) (*dto.ImportContactsResponse, error)
}

// ContactImportFlowImpl implements the contact import flow
type ContactImportFlowImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.ContactRepository
	db           *gorm.DB
}

// NewContactImportFlow creates a new contact import flow instance
func NewContactImportFlow(campaignRepo repository.CampaignRepository, contactRepo repository.ContactRepository, db *gorm.DB) ContactImportFlow {
	return &ContactImportFlowImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		db:           db,
	}
}

// ImportContacts admits one batch of contacts into a campaign. The whole
// import runs in a single transaction: the duplicate snapshot, the inserts,
// and the contact counter update land together or not at all.
func (s *ContactImportFlowImpl) ImportContacts(ctx context.Context, req *dto.ImportContactsRequest) (*dto.ImportContactsResponse, error) {
	if len(req.Contacts) == 0 {
		return nil, NewBusinessError("IMPORT_VALIDATION_FAILED", "Import validation failed", ErrNoContactsProvided)
	}

	campaign, err := s.campaignRepo.ByID(ctx, req.CampaignID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.CustomerID != req.CustomerID {
		return nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}
	if !campaign.IsSchedulable() {
		// the contact list freezes once the campaign starts sending
		return nil, NewBusinessError("CAMPAIGN_NOT_MODIFIABLE", "Campaign contact list is frozen", ErrCampaignNotModifiable)
	}

	resp := &dto.ImportContactsResponse{}

	// normalize and reject invalid rows, deduplicating within the batch
	candidates := make([]*models.Contact, 0, len(req.Contacts))
	seen := make(map[string]struct{}, len(req.Contacts))
	for _, entry := range req.Contacts {
		normalized, err := utils.NormalizePhone(entry.Phone)
		if err != nil {
			resp.RejectedInvalid++
			resp.InvalidPhones = append(resp.InvalidPhones, entry.Phone)
			continue
		}
		if _, dup := seen[normalized]; dup {
			resp.SkippedDuplicate++
			continue
		}
		seen[normalized] = struct{}{}

		candidates = append(candidates, &models.Contact{
			CampaignID: req.CampaignID,
			CustomerID: req.CustomerID,
			Phone:      normalized,
			Name:       strings.TrimSpace(entry.Name),
			Tags:       pq.StringArray(entry.Tags),
		})
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		phones := make([]string, 0, len(candidates))
		for _, c := range candidates {
			phones = append(phones, c.Phone)
		}

		existing, err := s.contactRepo.ExistingPhones(txCtx, req.CustomerID, phones)
		if err != nil {
			return fmt.Errorf("failed to snapshot existing phones: %w", err)
		}

		admitted := make([]*models.Contact, 0, len(candidates))
		for _, c := range candidates {
			if _, dup := existing[c.Phone]; dup {
				resp.SkippedDuplicate++
				continue
			}
			admitted = append(admitted, c)
		}

		if len(admitted) > 0 {
			if err := s.contactRepo.SaveBatch(txCtx, admitted); err != nil {
				return fmt.Errorf("failed to insert contacts: %w", err)
			}
		}
		resp.Admitted = len(admitted)

		total, err := s.contactRepo.CountByCampaign(txCtx, req.CampaignID)
		if err != nil {
			return fmt.Errorf("failed to count campaign contacts: %w", err)
		}
		campaign.TotalContacts = int(total)
		resp.TotalContacts = int(total)

		return s.campaignRepo.Update(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("IMPORT_FAILED", "Contact import failed", err)
	}

	resp.Message = "Contacts imported"
	return resp, nil
}

// ImportContactsFromXLSX parses an xlsx sheet and admits its rows through
// ImportContacts. The first sheet is used; expected columns are phone, name,
// and a comma-separated tag list. A header row is skipped when its first
// cell is not phone-like.
func (s *ContactImportFlowImpl) ImportContactsFromXLSX(ctx context.Context, customerID, campaignID uint, file io.Reader) (*dto.ImportContactsResponse, error) {
	book, err := excelize.OpenReader(file)
	if err != nil {
		return nil, NewBusinessError("IMPORT_FILE_UNREADABLE", "Import file could not be parsed", ErrImportFileUnreadble)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewBusinessError("IMPORT_FILE_EMPTY", "Import sheet contains no rows", ErrImportSheetEmpty)
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, NewBusinessError("IMPORT_FILE_UNREADABLE", "Import file could not be parsed", err)
	}
	if len(rows) == 0 {
		return nil, NewBusinessError("IMPORT_FILE_EMPTY", "Import sheet contains no rows", ErrImportSheetEmpty)
	}

	entries := make([]dto.ImportContactEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		if i == 0 && looksLikeHeader(row[0]) {
			continue
		}

		entry := dto.ImportContactEntry{Phone: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			entry.Name = strings.TrimSpace(row[1])
		}
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			for _, tag := range strings.Split(row[2], ",") {
				if t := strings.TrimSpace(tag); t != "" {
					entry.Tags = append(entry.Tags, t)
				}
			}
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, NewBusinessError("IMPORT_FILE_EMPTY", "Import sheet contains no rows", ErrImportSheetEmpty)
	}

	return s.ImportContacts(ctx, &dto.ImportContactsRequest{
		CustomerID: customerID,
		CampaignID: campaignID,
		Contacts:   entries,
	})
}

// looksLikeHeader reports whether a first-row cell is a column label rather
// than a phone number.
func looksLikeHeader(cell string) bool {
	trimmed := strings.TrimSpace(cell)
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			return false
		}
	}
	return trimmed != ""
}
