package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/mailtrust/go-mailtrust-server/global"
	"github.com/mailtrust/go-mailtrust-server/repository"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/mailtrust/go-mailtrust-server/util"
)

// ContactService is the fetch-and-verify contact collaborator: it keeps the
// locally stored signed cards per contact, authenticates them against the
// owners own keys and falls back to the remote contacts API when the local
// record is missing. Verification happens on every call; only the raw cards
// are stored, never the parsed preferences.
type ContactService struct {
	contactRepo repository.Repository
	restyClient *resty.Client
	env         *types.Environment
}

func NewContactService(dbSelector repository.DBSelector, env *types.Environment) *ContactService {
	contactRepo, err := dbSelector.ChooseDB(repository.ContactCards)
	if err != nil {
		level.Error(global.Logger).Log("msg", "error while choosing db", "err", err)
		panic(err)
	}
	rc := resty.New().
		SetBaseURL(global.Conf.MailTrust.ContactsAPIURL).
		SetHeader("Accept", "application/json").
		SetTimeout(time.Second * 10)
	return &ContactService{contactRepo: contactRepo, restyClient: rc, env: env}
}

// Client exposes the underlying resty client (tests activate httpmock on it).
func (cs *ContactService) Client() *resty.Client {
	return cs.restyClient
}

// ContactDocID derives the stable document id for an owner/contact pair.
func ContactDocID(ownerAddress, email string) string {
	s256 := sha256.Sum256([]byte(ownerAddress + email))
	return hex.EncodeToString(s256[:])
}

// GetContactCards loads the stored card record for a contact.
func (cs *ContactService) GetContactCards(ctx context.Context, ownerAddress, email string) (*types.ContactCards, error) {
	response, err := cs.contactRepo.GetByID(ctx, ContactDocID(ownerAddress, email))
	if err != nil {
		return nil, err
	}
	var cards types.ContactCards
	if mErr := repository.MapToObject(response, &cards); mErr != nil {
		return nil, mErr
	}
	return &cards, nil
}

// SaveContactCards stores (or replaces) the card record for a contact.
func (cs *ContactService) SaveContactCards(ctx context.Context, cards *types.ContactCards) error {
	if cards == nil || cards.OwnerAddress == "" || cards.Email == "" {
		return types.ErrBadRequest
	}
	docID := ContactDocID(cards.OwnerAddress, cards.Email)
	existing, eErr := cs.GetContactCards(ctx, cards.OwnerAddress, cards.Email)
	if eErr != nil && eErr != types.ErrNotFound {
		return eErr
	}
	now := time.Now().UnixMilli()
	if existing != nil {
		cards.BaseDocument = existing.BaseDocument
		cards.Created = existing.Created
	} else {
		cards.Created = now
	}
	cards.Modified = now
	return cs.contactRepo.Save(ctx, docID, cards)
}

// FetchAndVerifyContacts resolves the verified sending preferences for each
// of the email addresses. Never fails outward: any per-address failure
// (missing record, invalid signature, remote refresh failure) simply leaves
// that address out of the result. A contact whose local record is missing
// triggers a synchronous remote lookup; a contact whose cards carry no
// sending-preference metadata is additionally scheduled for a background
// refresh.
func (cs *ContactService) FetchAndVerifyContacts(ctx context.Context, user *types.User, emails []string) []*types.PreContact {
	verifierKeys := trustRootKeys(user)
	preContacts := make([]*types.PreContact, 0, len(emails))
	for _, email := range emails {
		cards, cErr := cs.GetContactCards(ctx, user.ID_, email)
		if cErr != nil {
			if cErr != types.ErrNotFound {
				level.Warn(global.Logger).Log("msg", "contact lookup failed", "email", email, "err", cErr)
				continue
			}
			remote, rErr := cs.fetchRemoteContact(ctx, user.ID_, email)
			if rErr != nil {
				// soft miss, contacts are optional enrichment
				continue
			}
			cards = remote
		}

		preContact := util.VerifyAndParseContact(email, cards.Cards, verifierKeys)
		if preContact == nil {
			cs.scheduleRefresh(user.ID_, email)
			continue
		}
		preContacts = append(preContacts, preContact)
	}
	return preContacts
}

// RefreshContact re-fetches a contacts detail from the remote contacts API
// and replaces the local record. Used by the background refresh task.
func (cs *ContactService) RefreshContact(ctx context.Context, ownerAddress, email string) error {
	cards, rErr := cs.fetchRemoteContact(ctx, ownerAddress, email)
	if rErr != nil {
		return rErr
	}
	return cs.SaveContactCards(ctx, cards)
}

// ListAll pages over all stored contact records (compromise re-scan walks these).
func (cs *ContactService) ListAll(ctx context.Context, limit, skip int) ([]*types.ContactCards, error) {
	docs, err := cs.contactRepo.GetAll(ctx, limit, skip)
	if err != nil {
		return nil, err
	}
	all := make([]*types.ContactCards, 0, len(docs))
	for _, doc := range docs {
		data, mErr := json.Marshal(doc)
		if mErr != nil {
			continue
		}
		var cards types.ContactCards
		if uErr := json.Unmarshal(data, &cards); uErr != nil {
			continue
		}
		all = append(all, &cards)
	}
	return all, nil
}

type remoteContactResponse struct {
	Contact struct {
		Email string           `json:"email"`
		Cards []types.CardData `json:"cards"`
	} `json:"contact"`
}

func (cs *ContactService) fetchRemoteContact(ctx context.Context, ownerAddress, email string) (*types.ContactCards, error) {
	var remote remoteContactResponse
	resp, rErr := cs.restyClient.R().
		SetContext(ctx).
		SetQueryParam("email", email).
		SetQueryParam("owner", ownerAddress).
		SetResult(&remote).
		Get("/api/v1/contacts")
	if rErr != nil {
		level.Warn(global.Logger).Log("msg", "remote contact fetch failed", "email", email, "err", rErr)
		return nil, rErr
	}
	if resp.IsError() {
		if resp.StatusCode() == 404 {
			return nil, types.ErrNotFound
		}
		return nil, types.ErrBadRequest
	}
	cards := &types.ContactCards{
		OwnerAddress: ownerAddress,
		Email:        email,
		Cards:        remote.Contact.Cards,
	}
	if sErr := cs.SaveContactCards(ctx, cards); sErr != nil {
		level.Warn(global.Logger).Log("msg", "failed to store refreshed contact", "email", email, "err", sErr)
	}
	return cards, nil
}

func (cs *ContactService) scheduleRefresh(ownerAddress, email string) {
	if cs.env.TaskClient == nil {
		return
	}
	task, tErr := types.NewContactRefreshTask(&types.ContactRefreshTask{OwnerAddress: ownerAddress, Email: email})
	if tErr != nil {
		level.Warn(global.Logger).Log("msg", "failed to build contact refresh task", "err", tErr)
		return
	}
	if _, qErr := cs.env.TaskClient.Enqueue(task); qErr != nil {
		level.Warn(global.Logger).Log("msg", "failed to enqueue contact refresh", "email", email, "err", qErr)
	}
}

func trustRootKeys(user *types.User) []string {
	var keys []string
	for i := range user.Addresses {
		keys = append(keys, user.Addresses[i].PublicKeys()...)
	}
	return keys
}
