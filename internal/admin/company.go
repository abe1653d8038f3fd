package admin

import (
	"context"
	"fmt"
)

// CompanyCache persists the company id resolved for a token.
type CompanyCache interface {
	CompanyIDByToken(ctx context.Context, token string) (int64, bool, error)
	SetCompanyID(ctx context.Context, token string, companyID int64) error
}

// CompanyID returns the company of the client's token, from cache when
// possible, otherwise from the API (and then cached).
func (c *Client) CompanyID(ctx context.Context, cache CompanyCache) (int64, error) {
	if id, ok, err := cache.CompanyIDByToken(ctx, c.token); err != nil {
		return 0, fmt.Errorf("company id: %w", err)
	} else if ok {
		return id, nil
	}

	id, err := c.ResolveCompanyID(ctx)
	if err != nil {
		return 0, err
	}
	if err := cache.SetCompanyID(ctx, c.token, id); err != nil {
		return 0, fmt.Errorf("company id: %w", err)
	}
	return id, nil
}
