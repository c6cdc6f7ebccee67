package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"omni-license-server/internal/model"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService mirrors license records into a Google Sheet so
// non-technical staff can see the current license table without console
// access. A nil service is a valid no-op, so callers never need to
// guard on the sync being enabled.
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

func NewSheetSyncService(enableSync bool, credentialPath, spreadsheetID, sheetName string) (*SheetSyncService, error) {
	if !enableSync {
		return nil, nil
	}

	ctx := context.Background()

	b, err := os.ReadFile(credentialPath)
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("load sheet credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// SyncRecord upserts one license row into the sheet, keyed by client_id
// in column A.
func (s *SheetSyncService) SyncRecord(rec *model.LicenseRecord) error {
	if s == nil {
		return nil
	}

	rangeToSearch := fmt.Sprintf("%s!A2:A", s.sheetName)
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rangeToSearch).Do()
	if err != nil {
		log.Printf("sheet sync: query rows: %v", err)
		return fmt.Errorf("query sheet rows: %v", err)
	}

	var rowIndex int
	found := false
	for i, row := range keyResp.Values {
		if len(row) > 0 && row[0] == rec.ClientID {
			found = true
			rowIndex = i + 2 // data starts at A2
			break
		}
	}

	values := [][]interface{}{{
		rec.ClientID,
		rec.Plan,
		rec.Status,
		rec.Modules,
		rec.ExpiresAt.Format(time.RFC3339),
		strconv.FormatInt(rec.UsageCount, 10),
		rec.LastCheck.Format(time.RFC3339),
		rec.CreatedAt.Format(time.RFC3339),
		rec.UpdatedAt.Format(time.RFC3339),
	}}

	if found {
		rangeData := fmt.Sprintf("%s!A%d:I%d", s.sheetName, rowIndex, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(
			s.spreadsheetID,
			rangeData,
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			s.sheetName+"!A2:I",
			&sheets.ValueRange{Values: values},
		).ValueInputOption("USER_ENTERED").Do()
	}

	if err != nil {
		log.Printf("sheet sync: write row for %s: %v", rec.ClientID, err)
		return fmt.Errorf("write sheet row: %v", err)
	}

	return nil
}
