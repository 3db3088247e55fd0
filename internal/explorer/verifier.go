// Package explorer submits contract source to Etherscan-compatible
// explorers and polls for the verification verdict.
package explorer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolrefuel/internal/model"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxAttempts  = 10
)

// Config wires a Verifier to one chain's explorer API.
type Config struct {
	APIURL       string
	APIKey       string
	ExplorerURL  string
	PollInterval time.Duration
	MaxAttempts  int
}

// Verifier drives source verification against one explorer.
type Verifier struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewVerifier returns a verifier with defaults filled in. A nil logger
// disables logging.
func NewVerifier(cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// SourcePackage is one contract submission.
type SourcePackage struct {
	Address         string
	Name            string
	Source          string
	CompilerVersion string
	// ConstructorArgs is ABI-encoded hex without the 0x prefix, empty when
	// the contract takes none.
	ConstructorArgs string
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Verify submits the package and polls until the explorer settles. A
// non-nil error means the API could not be reached; rejected or timed-out
// verifications come back in the VerificationInfo.
func (v *Verifier) Verify(ctx context.Context, pkg SourcePackage) (model.VerificationInfo, error) {
	form := url.Values{}
	form.Set("apikey", v.cfg.APIKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", pkg.Address)
	form.Set("sourceCode", pkg.Source)
	form.Set("codeformat", "solidity-single-file")
	form.Set("contractname", pkg.Name)
	form.Set("compilerversion", pkg.CompilerVersion)
	form.Set("optimizationUsed", "0")
	if pkg.ConstructorArgs != "" {
		// The explorer API spells it this way.
		form.Set("constructorArguements", pkg.ConstructorArgs)
	}

	v.logger.Info("submitting verification",
		zap.String("contract", pkg.Name),
		zap.String("address", pkg.Address))

	resp, err := v.postForm(ctx, form)
	if err != nil {
		return model.VerificationInfo{}, err
	}

	if resp.Status != "1" {
		if strings.Contains(strings.ToLower(resp.Result), "already verified") {
			return model.VerificationInfo{Status: "success", Message: "Already verified"}, nil
		}
		return model.VerificationInfo{Status: "failed", Message: resp.Result}, nil
	}

	v.logger.Info("verification submitted", zap.String("guid", resp.Result))
	return v.poll(ctx, resp.Result, pkg.Address)
}

func (v *Verifier) poll(ctx context.Context, guid, address string) (model.VerificationInfo, error) {
	for attempt := 1; attempt <= v.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return model.VerificationInfo{}, ctx.Err()
		case <-time.After(v.cfg.PollInterval):
		}

		resp, err := v.checkStatus(ctx, guid)
		if err != nil {
			v.logger.Warn("verification status check failed", zap.Error(err))
			continue
		}

		if resp.Status == "1" && resp.Result == "Pass - Verified" {
			info := model.VerificationInfo{
				Status:  "success",
				GUID:    guid,
				Message: "Verified",
			}
			if v.cfg.ExplorerURL != "" {
				info.ExplorerURL = fmt.Sprintf("%s/address/%s#code", v.cfg.ExplorerURL, address)
			}
			return info, nil
		}
		if resp.Status == "0" {
			if strings.Contains(resp.Result, "Pending") {
				v.logger.Debug("verification pending",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", v.cfg.MaxAttempts))
				continue
			}
			return model.VerificationInfo{Status: "failed", GUID: guid, Message: resp.Result}, nil
		}
	}

	return model.VerificationInfo{Status: "timeout", GUID: guid, Message: "verification timed out"}, nil
}

func (v *Verifier) postForm(ctx context.Context, form url.Values) (apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apiResponse{}, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return v.do(req)
}

func (v *Verifier) checkStatus(ctx context.Context, guid string) (apiResponse, error) {
	params := url.Values{}
	params.Set("apikey", v.cfg.APIKey)
	params.Set("module", "contract")
	params.Set("action", "checkverifystatus")
	params.Set("guid", guid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return apiResponse{}, fmt.Errorf("build status request: %w", err)
	}
	return v.do(req)
}

func (v *Verifier) do(req *http.Request) (apiResponse, error) {
	httpResp, err := v.client.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("explorer request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return apiResponse{}, fmt.Errorf("explorer returned %s", httpResp.Status)
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return apiResponse{}, fmt.Errorf("decode explorer response: %w", err)
	}
	return resp, nil
}

// EncodeConstructorAddress ABI-encodes a single address constructor
// argument as unprefixed hex.
func EncodeConstructorAddress(addr common.Address) (string, error) {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return "", fmt.Errorf("build abi type: %w", err)
	}
	packed, err := abi.Arguments{{Type: addressType}}.Pack(addr)
	if err != nil {
		return "", fmt.Errorf("pack constructor args: %w", err)
	}
	return hex.EncodeToString(packed), nil
}
