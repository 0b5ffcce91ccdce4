package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/csvbatch"
)

const DefaultOrgType = "Université"

type OrganizationService struct {
	registry Registry
	activity ActivityRecorder
	now      func() time.Time
}

func NewOrganizationService(registry Registry, activity ActivityRecorder) *OrganizationService {
	return &OrganizationService{registry: registry, activity: activity, now: time.Now}
}

func (s *OrganizationService) Stats(ctx context.Context) (*models.GlobalStats, error) {
	return s.registry.GlobalStats(ctx)
}

func (s *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	return s.registry.Organizations(ctx)
}

func (s *OrganizationService) Register(ctx context.Context, admin string, req models.OrganizationRequest) (*models.TxResult, error) {
	from, err := parseAddress("admin address", admin)
	if err != nil {
		return nil, err
	}

	req.Address = strings.TrimSpace(req.Address)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.OrgType = strings.TrimSpace(req.OrgType)

	if req.Address == "" || req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: address, name and email are required", ErrInvalidInput)
	}
	if _, err := parseAddress("organization address", req.Address); err != nil {
		return nil, err
	}
	if !csvbatch.IsEmail(req.Email) {
		return nil, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if req.OrgType == "" {
		req.OrgType = DefaultOrgType
	}

	res, err := s.registry.RegisterOrganization(ctx, from, req, s.now())
	if err != nil {
		return nil, err
	}

	record(ctx, s.activity, models.Activity{Actor: from.Hex(), Action: models.ActivityRegisterOrg, Subject: req.Address, TxHash: res.Hash})
	return res, nil
}

func (s *OrganizationService) Revoke(ctx context.Context, admin, org string) (*models.TxResult, error) {
	from, err := parseAddress("admin address", admin)
	if err != nil {
		return nil, err
	}
	orgAddr, err := parseAddress("organization address", org)
	if err != nil {
		return nil, err
	}

	res, err := s.registry.RevokeOrganization(ctx, from, orgAddr)
	if err != nil {
		return nil, err
	}

	record(ctx, s.activity, models.Activity{Actor: from.Hex(), Action: models.ActivityRevokeOrg, Subject: orgAddr.Hex(), TxHash: res.Hash})
	return res, nil
}
