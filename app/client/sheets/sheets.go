package sheets

import (
	"context"
	"dotori/app/config"
	"fmt"

	"github.com/samber/do"
	"github.com/samber/oops"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Client reads the reference tables from the configured spreadsheet.
type Client struct {
	cfg *config.Config
	svc *sheetsapi.Service
}

func NewClient(di *do.Injector) (*Client, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	opts := []option.ClientOption{
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	}

	if cfg.Google.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Google.CredentialsJSON)))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, oops.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		cfg: cfg,
		svc: svc,
	}, nil
}

// FetchRange returns the cell values of a named range, one string
// slice per row. Trailing empty cells are absent from a row, exactly
// as the Sheets API reports them.
func (c *Client) FetchRange(ctx context.Context, rangeName string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.cfg.Google.SheetID, rangeName).Context(ctx).Do()
	if err != nil {
		return nil, oops.Errorf("failed to fetch range %q: %w", rangeName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}

		rows = append(rows, row)
	}

	return rows, nil
}
