package service

import (
	"context"
	"errors"
	"testing"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterOrganization(t *testing.T) {
	reg := &mockRegistry{}
	want := models.OrganizationRequest{
		Address: orgAddr.Hex(),
		Name:    "Université de Lyon",
		Email:   "contact@lyon.fr",
		OrgType: DefaultOrgType,
	}
	reg.On("RegisterOrganization", mock.Anything, adminAddr, want, fixedNow).
		Return(&models.TxResult{Hash: "0xreg"}, nil).Once()

	act := &memActivity{}
	s := NewOrganizationService(reg, act)
	s.now = fixedClock

	res, err := s.Register(context.Background(), adminAddr.Hex(), models.OrganizationRequest{
		Address: " " + orgAddr.Hex() + " ",
		Name:    "Université de Lyon",
		Email:   "contact@lyon.fr",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xreg", res.Hash)
	require.Len(t, act.entries, 1)
	assert.Equal(t, models.ActivityRegisterOrg, act.entries[0].Action)

	reg.AssertExpectations(t)
}

func TestRegisterOrganizationValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.OrganizationRequest
	}{
		{name: "missing name", req: models.OrganizationRequest{Address: orgAddr.Hex(), Email: "a@b.fr"}},
		{name: "missing email", req: models.OrganizationRequest{Address: orgAddr.Hex(), Name: "Lyon"}},
		{name: "bad address", req: models.OrganizationRequest{Address: "0x12", Name: "Lyon", Email: "a@b.fr"}},
		{name: "bad email", req: models.OrganizationRequest{Address: orgAddr.Hex(), Name: "Lyon", Email: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &mockRegistry{}
			s := NewOrganizationService(reg, nil)

			_, err := s.Register(context.Background(), adminAddr.Hex(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			reg.AssertNotCalled(t, "RegisterOrganization")
		})
	}
}

func TestRevokeOrganization(t *testing.T) {
	reg := &mockRegistry{}
	reg.On("RevokeOrganization", mock.Anything, adminAddr, orgAddr).Return(nil, errors.New("Only admin")).Once()

	s := NewOrganizationService(reg, nil)
	_, err := s.Revoke(context.Background(), adminAddr.Hex(), orgAddr.Hex())
	assert.EqualError(t, err, "Only admin")

	_, err = s.Revoke(context.Background(), adminAddr.Hex(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidInput)

	reg.AssertExpectations(t)
}
