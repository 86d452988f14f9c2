package repository

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// CreateContactEmailIndex creates an index on the contact_cards database for
// lookups by owner address and contact email.
func CreateContactEmailIndex(contactRepo Repository) error {
	ownerEmailIndex := map[string]interface{}{
		"index": map[string]interface{}{
			"fields": []map[string]interface{}{
				{"ownerAddress": "desc"},
				{"email": "desc"},
			},
		},
		"name": "ownerAddress-email-index",
		"type": "json",
		"ddoc": "ownerAddress-email-index",
	}
	c := contactRepo.GetClient().(*resty.Client)
	resp, rErr := c.R().SetBody(ownerEmailIndex).Post(fmt.Sprintf("%s/%s", contactRepo.GetDBName(), "_index"))
	if rErr != nil {
		return rErr
	}
	if resp.IsError() {
		return handleError(resp)
	}
	return nil
}
