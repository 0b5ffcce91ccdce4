package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

var (
	ErrReverted       = errors.New("transaction reverted")
	ErrInvalidAddress = errors.New("invalid contract address")
)

// Backend is what the registry needs from a JSON-RPC node. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

type Config struct {
	ContractAddress  string
	RPCURL           string // public read-only endpoint
	SignerRPCURL     string // endpoint transactions are sent to, defaults to RPCURL
	PrivateKey       string
	KeystoreDir      string
	KeystorePassword string
	LogWindow        uint64
	DeployBlock      uint64
}

type Client struct {
	Address     common.Address
	Signers     *Signers
	Logs        *LogWindow
	DeployBlock uint64

	reader Backend
	writer Backend
	read   *bind.BoundContract
	write  *bind.BoundContract

	closers []func()
}

// onchainCertificate matches the Certificate struct returned by the registry.
type onchainCertificate struct {
	Id            *big.Int
	Issuer        common.Address
	IssuerName    string
	Student       common.Address
	StudentName   string
	StudentEmail  string
	FormationName string
	CertType      string
	IpfsHash      string
	IssuedAt      *big.Int
	Revoked       bool
}

func NewClient(address common.Address, reader, writer Backend, signers *Signers, window, deployBlock uint64) *Client {
	if writer == nil {
		writer = reader
	}
	return &Client{
		Address:     address,
		Signers:     signers,
		Logs:        &LogWindow{Backend: reader, Contract: address, Window: window},
		DeployBlock: deployBlock,
		reader:      reader,
		writer:      writer,
		read:        bind.NewBoundContract(address, RegistryABI, reader, reader, reader),
		write:       bind.NewBoundContract(address, RegistryABI, writer, writer, writer),
	}
}

// Dial connects the read and signer endpoints and loads the configured keys.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, cfg.ContractAddress)
	}

	reader, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", cfg.RPCURL, err)
	}
	closers := []func(){reader.Close}

	writer := reader
	if cfg.SignerRPCURL != "" && cfg.SignerRPCURL != cfg.RPCURL {
		writer, err = ethclient.DialContext(ctx, cfg.SignerRPCURL)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("dial signer rpc %s: %w", cfg.SignerRPCURL, err)
		}
		closers = append(closers, writer.Close)
	}

	c := NewClient(common.HexToAddress(cfg.ContractAddress), reader, writer, nil, cfg.LogWindow, cfg.DeployBlock)
	c.closers = closers

	chainID, err := writer.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	c.Signers = NewSigners(chainID)
	if cfg.PrivateKey != "" {
		addr, err := c.Signers.AddHexKey(cfg.PrivateKey)
		if err != nil {
			c.Close()
			return nil, err
		}
		log.Infof("signer loaded from private key: %s", addr.Hex())
	}
	if cfg.KeystoreDir != "" {
		addrs, err := c.Signers.AddKeystore(cfg.KeystoreDir, cfg.KeystorePassword)
		if err != nil {
			c.Close()
			return nil, err
		}
		log.Infof("%d signer(s) unlocked from keystore %s", len(addrs), cfg.KeystoreDir)
	}

	return c, nil
}

func (c *Client) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
}

func (c *Client) CanSign(addr common.Address) bool {
	return c.Signers != nil && c.Signers.Has(addr)
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.read.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (c *Client) Admin(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "admin")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *Client) Organization(ctx context.Context, addr common.Address) (*models.Organization, error) {
	out, err := c.call(ctx, "organizations", addr)
	if err != nil {
		return nil, err
	}

	return &models.Organization{
		Address:        addr.Hex(),
		Name:           *abi.ConvertType(out[0], new(string)).(*string),
		Email:          *abi.ConvertType(out[1], new(string)).(*string),
		OrgType:        *abi.ConvertType(out[2], new(string)).(*string),
		IsActive:       *abi.ConvertType(out[3], new(bool)).(*bool),
		RegisteredAt:   unixTime(*abi.ConvertType(out[4], new(*big.Int)).(**big.Int)),
		TotalIssued:    u64(*abi.ConvertType(out[5], new(*big.Int)).(**big.Int)),
		TotalRevoked:   u64(*abi.ConvertType(out[6], new(*big.Int)).(**big.Int)),
		UniqueStudents: u64(*abi.ConvertType(out[7], new(*big.Int)).(**big.Int)),
	}, nil
}

func (c *Client) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	out, err := c.call(ctx, "getGlobalStats")
	if err != nil {
		return nil, err
	}

	return &models.GlobalStats{
		TotalOrganizations:  u64(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)),
		ActiveOrganizations: u64(*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)),
		TotalCertificates:   u64(*abi.ConvertType(out[2], new(*big.Int)).(**big.Int)),
		RevokedCertificates: u64(*abi.ConvertType(out[3], new(*big.Int)).(**big.Int)),
	}, nil
}

// Organizations zips the parallel arrays of getAllOrganizations.
func (c *Client) Organizations(ctx context.Context) ([]models.Organization, error) {
	out, err := c.call(ctx, "getAllOrganizations")
	if err != nil {
		return nil, err
	}

	addrs := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	names := *abi.ConvertType(out[1], new([]string)).(*[]string)
	emails := *abi.ConvertType(out[2], new([]string)).(*[]string)
	orgTypes := *abi.ConvertType(out[3], new([]string)).(*[]string)
	actives := *abi.ConvertType(out[4], new([]bool)).(*[]bool)
	issued := *abi.ConvertType(out[5], new([]*big.Int)).(*[]*big.Int)
	revoked := *abi.ConvertType(out[6], new([]*big.Int)).(*[]*big.Int)
	students := *abi.ConvertType(out[7], new([]*big.Int)).(*[]*big.Int)
	registered := *abi.ConvertType(out[8], new([]*big.Int)).(*[]*big.Int)

	n := len(addrs)
	for _, l := range []int{len(names), len(emails), len(orgTypes), len(actives), len(issued), len(revoked), len(students), len(registered)} {
		if l != n {
			return nil, fmt.Errorf("getAllOrganizations: mismatched array lengths")
		}
	}

	orgs := make([]models.Organization, 0, n)
	for i := 0; i < n; i++ {
		orgs = append(orgs, models.Organization{
			Address:        addrs[i].Hex(),
			Name:           names[i],
			Email:          emails[i],
			OrgType:        orgTypes[i],
			IsActive:       actives[i],
			RegisteredAt:   unixTime(registered[i]),
			TotalIssued:    u64(issued[i]),
			TotalRevoked:   u64(revoked[i]),
			UniqueStudents: u64(students[i]),
		})
	}
	return orgs, nil
}

func (c *Client) CertificateCounter(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, "certificateCounter")
	if err != nil {
		return 0, err
	}
	return u64(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)), nil
}

// Certificate reads one certificate. The registry answers an unknown id with a zeroed
// struct, so callers check ID == 0.
func (c *Client) Certificate(ctx context.Context, id uint64) (*models.Certificate, error) {
	out, err := c.call(ctx, "getCertificate", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	oc := *abi.ConvertType(out[0], new(onchainCertificate)).(*onchainCertificate)
	cert := toCertificate(oc)
	return &cert, nil
}

func (c *Client) OrganizationCertificates(ctx context.Context, org common.Address) ([]models.Certificate, error) {
	return c.certificates(ctx, "getOrganizationCertificates", org)
}

func (c *Client) StudentCertificates(ctx context.Context, student common.Address) ([]models.Certificate, error) {
	return c.certificates(ctx, "getStudentCertificates", student)
}

func (c *Client) certificates(ctx context.Context, method string, addr common.Address) ([]models.Certificate, error) {
	out, err := c.call(ctx, method, addr)
	if err != nil {
		return nil, err
	}
	list := *abi.ConvertType(out[0], new([]onchainCertificate)).(*[]onchainCertificate)

	certs := make([]models.Certificate, 0, len(list))
	for _, oc := range list {
		certs = append(certs, toCertificate(oc))
	}
	return certs, nil
}

func (c *Client) RegisterOrganization(ctx context.Context, from common.Address, req models.OrganizationRequest, registeredAt time.Time) (*models.TxResult, error) {
	receipt, err := c.transact(ctx, from, "registerOrganization",
		common.HexToAddress(req.Address), req.Name, req.Email, req.OrgType, big.NewInt(registeredAt.Unix()))
	if err != nil {
		return nil, err
	}
	return txResult(receipt), nil
}

func (c *Client) RevokeOrganization(ctx context.Context, from, org common.Address) (*models.TxResult, error) {
	receipt, err := c.transact(ctx, from, "revokeOrganization", org)
	if err != nil {
		return nil, err
	}
	return txResult(receipt), nil
}

// IssueCertificate sends issueCertificate and reads the new id from the CertificateIssued log.
func (c *Client) IssueCertificate(ctx context.Context, from common.Address, req models.IssueRequest) (*models.TxResult, error) {
	receipt, err := c.transact(ctx, from, "issueCertificate",
		common.HexToAddress(req.StudentAddress),
		req.StudentName,
		req.StudentEmail,
		req.FormationName,
		req.CertType,
		req.IPFSHash,
		big.NewInt(req.IssuedAt.Unix()),
	)
	if err != nil {
		return nil, err
	}

	res := txResult(receipt)
	issuedID := RegistryABI.Events[EventCertificateIssued].ID
	for _, l := range receipt.Logs {
		if l.Address == c.Address && len(l.Topics) > 1 && l.Topics[0] == issuedID {
			res.CertID = new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
			break
		}
	}
	return res, nil
}

func (c *Client) RevokeCertificate(ctx context.Context, from common.Address, id uint64) (*models.TxResult, error) {
	receipt, err := c.transact(ctx, from, "revokeCertificate", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return txResult(receipt), nil
}

func (c *Client) transact(ctx context.Context, from common.Address, method string, args ...interface{}) (*types.Receipt, error) {
	if c.Signers == nil {
		return nil, ErrNoSigner
	}
	opts, err := c.Signers.TransactOpts(ctx, from)
	if err != nil {
		return nil, err
	}

	tx, err := c.write.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	log.WithFields(log.Fields{"method": method, "tx": tx.Hash().Hex(), "from": from.Hex()}).Info("registry transaction sent")

	receipt, err := bind.WaitMined(ctx, c.writer, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s receipt: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s: %w (tx %s)", method, ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

// GasCost returns gas used and the wei paid for a mined transaction.
func (c *Client) GasCost(ctx context.Context, hash common.Hash) (uint64, *big.Int, error) {
	receipt, err := c.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		return 0, nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
	}

	price := receipt.EffectiveGasPrice
	if price == nil || price.Sign() == 0 {
		tx, _, err := c.reader.TransactionByHash(ctx, hash)
		if err != nil {
			return 0, nil, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
		}
		price = tx.GasPrice()
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	return receipt.GasUsed, cost, nil
}

func txResult(r *types.Receipt) *models.TxResult {
	res := &models.TxResult{
		Hash:    r.TxHash.Hex(),
		GasUsed: r.GasUsed,
	}
	if r.BlockNumber != nil {
		res.BlockNumber = r.BlockNumber.Uint64()
	}
	return res
}

func toCertificate(oc onchainCertificate) models.Certificate {
	id := u64(oc.Id)
	issued := unixTime(oc.IssuedAt)

	cert := models.Certificate{
		ID:            id,
		Issuer:        oc.Issuer.Hex(),
		IssuerName:    oc.IssuerName,
		Student:       oc.Student.Hex(),
		StudentName:   oc.StudentName,
		StudentEmail:  oc.StudentEmail,
		FormationName: oc.FormationName,
		CertType:      oc.CertType,
		IPFSHash:      oc.IpfsHash,
		IssuedAt:      issued,
		Revoked:       oc.Revoked,
	}
	if id != 0 {
		cert.CertID = certid.Format(issued.Year(), id)
	}
	return cert
}

func u64(b *big.Int) uint64 {
	if b == nil {
		return 0
	}
	return b.Uint64()
}

func unixTime(b *big.Int) time.Time {
	if b == nil {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(b.Int64(), 0).UTC()
}
