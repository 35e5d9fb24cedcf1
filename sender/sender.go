package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"
)

type Config struct {
	PyroscopeURL string
	AuthToken    string
	AppName      string
	Tags         map[string]string
}

type Sender struct {
	config Config
	from   int64
	until  int64
	client *http.Client
	logger zerolog.Logger
}

func New(config Config, logger zerolog.Logger) *Sender {
	return &Sender{
		config: config,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}
}

// SetFrom sets the start of the profiled span, in Unix seconds.
func (s *Sender) SetFrom(from int64) {
	s.from = from
}

// SetUntil sets the end of the profiled span, in Unix seconds.
func (s *Sender) SetUntil(until int64) {
	s.until = until
}

// SetSpan sets from/until to the run's wall-clock span.
func (s *Sender) SetSpan(start, end time.Time) {
	s.SetFrom(start.Unix())
	s.SetUntil(end.Unix())
}

// Name returns the Pyroscope application name with tags, e.g. "orders{env=prod}".
func (s *Sender) Name() string {
	if len(s.config.Tags) == 0 {
		return s.config.AppName
	}
	keys := make([]string, 0, len(s.config.Tags))
	for k := range s.config.Tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+s.config.Tags[k])
	}
	return s.config.AppName + "{" + strings.Join(pairs, ",") + "}"
}

func (s *Sender) SendSample(ctx context.Context, prof *profile.Profile, sampleTypeConfig map[string]map[string]interface{}) error {
	// Validate the profile
	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	// Convert the profile data to bytes
	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}

	sampleTypeConfigJSON, err := json.Marshal(sampleTypeConfig)
	if err != nil {
		return fmt.Errorf("marshalling sampleTypeConfig: %w", err)
	}

	// Create a multipart form body
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	profilePart, err := writer.CreateFormFile("profile", "profile.pprof")
	if err != nil {
		return fmt.Errorf("creating profile part: %w", err)
	}
	if _, err := profilePart.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing profile data: %w", err)
	}

	sampleTypeConfigPart, err := writer.CreateFormFile("sample_type_config", "config.json")
	if err != nil {
		return fmt.Errorf("creating sample_type_config part: %w", err)
	}
	if _, err := sampleTypeConfigPart.Write(sampleTypeConfigJSON); err != nil {
		return fmt.Errorf("writing sample_type_config data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing writer: %w", err)
	}

	params := url.Values{}
	params.Set("name", s.Name())
	params.Set("spyName", "jvmscope")
	if s.from > 0 {
		params.Set("from", strconv.FormatInt(s.from, 10))
	}
	if s.until > 0 {
		params.Set("until", strconv.FormatInt(s.until, 10))
	}

	ingestURL := fmt.Sprintf("%s/ingest?%s", strings.TrimRight(s.config.PyroscopeURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ingestURL, &body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(respBody))
	}
	s.logger.Info().Str("name", s.Name()).Int("bytes", buf.Len()).Msg("Profile sent successfully")

	return nil
}
