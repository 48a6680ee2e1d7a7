package businessflow

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/amirphl/Susanoo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestImportContactsValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContacts(ctx, &dto.ImportContactsRequest{CustomerID: 1, CampaignID: 1})
		assert.ErrorIs(t, err, ErrNoContactsProvided)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContacts(ctx, &dto.ImportContactsRequest{
			CustomerID: 1,
			CampaignID: 42,
			Contacts:   []dto.ImportContactEntry{{Phone: "919876543210"}},
		})
		assert.True(t, IsCampaignNotFound(err))
	})

	t.Run("campaign of another account", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(draftCampaign(1, 7)), nil, nil)
		_, err := flow.ImportContacts(ctx, &dto.ImportContactsRequest{
			CustomerID: 1,
			CampaignID: 1,
			Contacts:   []dto.ImportContactEntry{{Phone: "919876543210"}},
		})
		assert.True(t, IsCampaignAccessDenied(err))
	})

	t.Run("contact list frozen once sending", func(t *testing.T) {
		campaign := draftCampaign(1, 1)
		campaign.Status = models.CampaignStatusSending

		flow := NewContactImportFlow(newFakeCampaignRepo(campaign), nil, nil)
		_, err := flow.ImportContacts(ctx, &dto.ImportContactsRequest{
			CustomerID: 1,
			CampaignID: 1,
			Contacts:   []dto.ImportContactEntry{{Phone: "919876543210"}},
		})
		assert.ErrorIs(t, err, ErrCampaignNotModifiable)
	})
}

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()

	book := excelize.NewFile()
	defer book.Close()

	sheet := book.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, book.SetCellValue(sheet, name, cell))
		}
	}

	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportContactsFromXLSX(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an unreadable file", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContactsFromXLSX(ctx, 1, 1, strings.NewReader("not a spreadsheet"))
		assert.ErrorIs(t, err, ErrImportFileUnreadble)
	})

	t.Run("rejects an empty sheet", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContactsFromXLSX(ctx, 1, 1, buildWorkbook(t, nil))
		assert.ErrorIs(t, err, ErrImportSheetEmpty)
	})

	t.Run("rejects a sheet with only a header", func(t *testing.T) {
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContactsFromXLSX(ctx, 1, 1, buildWorkbook(t, [][]string{
			{"phone", "name", "tags"},
		}))
		assert.ErrorIs(t, err, ErrImportSheetEmpty)
	})

	t.Run("parsed rows reach the import pipeline", func(t *testing.T) {
		// campaign lookup fails after parsing, proving the rows were accepted
		flow := NewContactImportFlow(newFakeCampaignRepo(), nil, nil)
		_, err := flow.ImportContactsFromXLSX(ctx, 1, 42, buildWorkbook(t, [][]string{
			{"phone", "name", "tags"},
			{"919876543210", "Asha", "vip, beta"},
		}))
		assert.True(t, IsCampaignNotFound(err))
	})
}

func TestLooksLikeHeader(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"phone", true},
		{"Phone Number", true},
		{"919876543210", false},
		{"+91 98765 43210", false},
		{"", false},
		{"   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeHeader(tt.cell))
		})
	}
}
