package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/mailtrust/go-mailtrust-server/types"
	"github.com/stretchr/testify/assert"
)

var url = "http://localhost:5689"

func InitMockDatabase(dbName string) (Repository, error) {
	httpmock.Activate()

	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s", url, "_all_dbs"),
		httpmock.NewStringResponder(200, `[]`))

	mr, mErr := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	if mErr != nil {
		return nil, mErr
	}
	httpmock.RegisterResponder("PUT", fmt.Sprintf("%s/%s", url, dbName), mr)
	httpmock.RegisterResponder("HEAD", fmt.Sprintf("%s/%s", url, dbName), mr)
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s", url, dbName), mr)

	db, err := NewCouchDBRepository(url, dbName, "test", "test", true)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func deactivateMock() {
	httpmock.DeactivateAndReset()
}

func TestInitNewDatabase(t *testing.T) {
	db, err := InitMockDatabase(ContactCards)
	defer deactivateMock()
	if err != nil {
		t.Fatal(err)
	}
	if db == nil {
		t.Fatal("db is nil")
	}
	assert.Equal(t, ContactCards, db.GetDBName())
}

func TestGetByID(t *testing.T) {
	db, _ := InitMockDatabase(ContactCards)
	defer deactivateMock()

	mk, _ := httpmock.NewJsonResponder(201, types.OK{IsOK: true})
	httpmock.RegisterResponder("POST", fmt.Sprintf("%s/%s", url, ContactCards), mk)

	record := types.ContactCards{
		BaseDocument: types.BaseDocument{ID: "abc"},
		OwnerAddress: "owner@example.com",
		Email:        "alice@example.com",
	}
	mk, _ = httpmock.NewJsonResponder(200, record)
	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, ContactCards, "abc"), mk)

	db.Save(context.Background(), "abc", &record)
	res, err := db.GetByID(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("res is nil")
	}
	var loaded types.ContactCards
	if mErr := MapToObject(res, &loaded); mErr != nil {
		t.Fatal(mErr)
	}
	assert.Equal(t, "alice@example.com", loaded.Email)
}

func TestGetByIDNotFound(t *testing.T) {
	db, _ := InitMockDatabase(ContactCards)
	defer deactivateMock()

	httpmock.RegisterResponder("GET", fmt.Sprintf("%s/%s/%s", url, ContactCards, "missing"),
		httpmock.NewStringResponder(404, `{"error":"not_found","reason":"missing"}`))

	_, err := db.GetByID(context.Background(), "missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
