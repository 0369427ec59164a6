package nodeprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/quil-exporter/internal/decode"
	"github.com/tinytelemetry/quil-exporter/internal/errs"
	"github.com/tinytelemetry/quil-exporter/internal/logger"
	"github.com/tinytelemetry/quil-exporter/internal/model"
)

const nodeService = "/quilibrium.node.node.pb.NodeService"

const maxResponseBytes = 4 << 20

// RPCConfig locates the node's HTTP gateway.
type RPCConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
	// BaseURL replaces the URL derived from Host and Port.
	BaseURL string
	Client  *http.Client
}

// RPCProbe reads status from the GetNodeInfo and GetTokenInfo calls. The two
// calls fail independently; a failed call leaves its fields at defaults.
type RPCProbe struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	hostname HostnameFunc
	log      zerolog.Logger
}

// NewRPCProbe creates an RPC strategy.
func NewRPCProbe(cfg RPCConfig, hostname HostnameFunc) *RPCProbe {
	if cfg.Host == "" {
		cfg.Host = model.DefaultRPCHost
	}
	if cfg.Port <= 0 {
		cfg.Port = model.DefaultRPCPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultRPCTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if hostname == nil {
		hostname = DefaultHostname
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + nodeService
	}

	return &RPCProbe{
		baseURL:  base,
		timeout:  cfg.Timeout,
		client:   cfg.Client,
		hostname: hostname,
		log:      logger.WithComponent("nodeprobe").With().Str("probe", "rpc").Logger(),
	}
}

func (p *RPCProbe) Name() string { return ModeRPC }

// nodeInfoResponse mirrors the gateway's JSON. int64 fields arrive as strings,
// int32 fields as numbers, and zero values are omitted.
type nodeInfoResponse struct {
	PeerID        string     `json:"peerId"`
	PeerScore     flexNumber `json:"peerScore"`
	MaxFrame      flexNumber `json:"maxFrame"`
	PeerSeniority string     `json:"peerSeniority"`
	ProverRing    flexNumber `json:"proverRing"`
	Workers       flexNumber `json:"workers"`
}

type tokenInfoResponse struct {
	OwnedTokens string `json:"ownedTokens"`
}

func (p *RPCProbe) Probe(ctx context.Context) (*model.StatusRecord, error) {
	rec := model.NewStatusRecord(p.hostname(ctx))

	var (
		node     nodeInfoResponse
		token    tokenInfoResponse
		nodeErr  error
		tokenErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		nodeErr = p.call(ctx, "GetNodeInfo", &node)
		return nil
	})
	g.Go(func() error {
		tokenErr = p.call(ctx, "GetTokenInfo", &token)
		return nil
	})
	_ = g.Wait()

	if nodeErr != nil {
		p.log.Warn().Err(nodeErr).Str("class", errs.Class(nodeErr)).Msg("unable to fetch GetNodeInfo")
	} else {
		p.applyNodeInfo(rec, &node)
	}
	if tokenErr != nil {
		p.log.Warn().Err(tokenErr).Str("class", errs.Class(tokenErr)).Msg("unable to fetch GetTokenInfo")
	} else {
		p.applyTokenInfo(rec, &token)
	}

	if rec.PeerID == "" {
		if nodeErr != nil {
			return nil, errors.Mark(errors.Wrap(nodeErr, "rpc probe"), errs.ErrNoIdentity)
		}
		return nil, errors.Wrap(errs.ErrNoIdentity, "rpc probe: GetNodeInfo returned no peerId")
	}
	return rec, nil
}

func (p *RPCProbe) applyNodeInfo(rec *model.StatusRecord, node *nodeInfoResponse) {
	rec.PeerID = node.PeerID

	if v, ok := node.PeerScore.Float(); ok {
		rec.PeerScore = v
		rec.Mark(model.FieldPeerScore)
	}
	if v, ok := node.MaxFrame.Int(); ok {
		rec.MaxFrame = v
		rec.Mark(model.FieldMaxFrame)
	}
	if v, ok := node.ProverRing.Int(); ok {
		rec.Ring = v
		rec.Mark(model.FieldRing)
	}
	if v, ok := node.Workers.Int(); ok {
		rec.ActiveWorkers = v
		rec.Mark(model.FieldActiveWorkers)
	}
	if node.PeerSeniority != "" {
		seniority, err := decode.DecodeVarintBalance(node.PeerSeniority)
		if err != nil {
			p.log.Warn().Err(err).Msg("peerSeniority not decodable")
		} else {
			rec.Seniority = seniority
			rec.Mark(model.FieldSeniority)
		}
	}
}

func (p *RPCProbe) applyTokenInfo(rec *model.StatusRecord, token *tokenInfoResponse) {
	if token.OwnedTokens == "" {
		return
	}
	raw, err := decode.DecodeVarintBalance(token.OwnedTokens)
	if err != nil {
		p.log.Warn().Err(err).Msg("ownedTokens not decodable")
		return
	}
	rec.UnclaimedBalance = decode.TokensToBalance(raw)
	rec.Mark(model.FieldUnclaimedBalance)
}

func (p *RPCProbe) call(ctx context.Context, method string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	url := p.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return errs.Transport(err, "build %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Transport(err, "%s", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return errs.Transport(errors.Newf("status %d", resp.StatusCode), "%s", method)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errs.Transport(err, "read %s response", method)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Decode(err, "%s response", method)
	}
	return nil
}

// flexNumber accepts a JSON number or a numeric string. Null and empty
// strings read as absent.
type flexNumber struct {
	raw string
	set bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = flexNumber{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	*n = flexNumber{raw: s, set: s != ""}
	return nil
}

func (n flexNumber) Float() (float64, bool) {
	if !n.set {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (n flexNumber) Int() (int64, bool) {
	if !n.set {
		return 0, false
	}
	if v, err := strconv.ParseInt(n.raw, 10, 64); err == nil {
		return v, true
	}
	v, ok := n.Float()
	if !ok {
		return 0, false
	}
	return int64(v), true
}
