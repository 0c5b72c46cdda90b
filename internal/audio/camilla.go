package audio

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CamillaConfig configures a CamillaDSP endpoint.
type CamillaConfig struct {
	// URL of the CamillaDSP websocket, e.g. ws://127.0.0.1:1234.
	URL string
	// MinDB and MaxDB are the dB values for scalar 0 and 1.
	MinDB float64
	MaxDB float64
	// Timeout bounds each request/response exchange.
	Timeout time.Duration
}

// DefaultCamillaConfig returns the settings used when nothing is configured.
func DefaultCamillaConfig() CamillaConfig {
	return CamillaConfig{
		URL:     "ws://127.0.0.1:1234",
		MinDB:   -65.0,
		MaxDB:   0.0,
		Timeout: 500 * time.Millisecond,
	}
}

const handshakeTimeout = 2 * time.Second

// Camilla drives the main volume of a CamillaDSP instance over its
// websocket API. Scalars map linearly onto [MinDB, MaxDB]. A dropped
// connection is re-dialed on the next request while the endpoint is open.
type Camilla struct {
	config CamillaConfig

	mu   sync.Mutex
	open bool
	conn *websocket.Conn
}

// NewCamilla creates a CamillaDSP endpoint. No connection is made until Open.
func NewCamilla(config CamillaConfig) *Camilla {
	if config.Timeout <= 0 {
		config.Timeout = DefaultCamillaConfig().Timeout
	}
	return &Camilla{config: config}
}

// Open connects to CamillaDSP.
func (c *Camilla) Open() error {
	if c.config.MaxDB <= c.config.MinDB {
		return fmt.Errorf("camilladsp: max_db %.1f must exceed min_db %.1f", c.config.MaxDB, c.config.MinDB)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}

	c.conn = conn
	c.open = true
	return nil
}

func (c *Camilla) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid ws url: %w", err)
	}

	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect camilladsp: %w", err)
	}
	return conn, nil
}

func (c *Camilla) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Camilla) ScalarVolume() (float64, error) {
	var resp struct {
		GetVolume struct {
			Result string  `json:"result"`
			Value  float64 `json:"value"`
		} `json:"GetVolume"`
	}
	if err := c.request("GetVolume", &resp); err != nil {
		return 0, err
	}
	if resp.GetVolume.Result != "Ok" {
		return 0, fmt.Errorf("GetVolume: %s", resp.GetVolume.Result)
	}
	return c.toScalar(resp.GetVolume.Value), nil
}

func (c *Camilla) SetScalarVolume(v float64) error {
	var resp struct {
		SetVolume struct {
			Result string `json:"result"`
		} `json:"SetVolume"`
	}
	if err := c.request(map[string]float64{"SetVolume": c.toDB(v)}, &resp); err != nil {
		return err
	}
	if resp.SetVolume.Result != "Ok" {
		return fmt.Errorf("SetVolume: %s", resp.SetVolume.Result)
	}
	return nil
}

func (c *Camilla) SetMute(mute bool) error {
	var resp struct {
		SetMute struct {
			Result string `json:"result"`
		} `json:"SetMute"`
	}
	if err := c.request(map[string]bool{"SetMute": mute}, &resp); err != nil {
		return err
	}
	if resp.SetMute.Result != "Ok" {
		return fmt.Errorf("SetMute: %s", resp.SetMute.Result)
	}
	return nil
}

func (c *Camilla) toDB(v float64) float64 {
	return c.config.MinDB + Clamp(v)*(c.config.MaxDB-c.config.MinDB)
}

func (c *Camilla) toScalar(db float64) float64 {
	return Clamp((db - c.config.MinDB) / (c.config.MaxDB - c.config.MinDB))
}

// request sends cmd as a JSON text frame and decodes the reply into out.
func (c *Camilla) request(cmd any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotOpen
	}
	if c.conn == nil {
		conn, err := c.dial()
		if err != nil {
			return err
		}
		c.conn = conn
	}

	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.Timeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return c.fail(fmt.Errorf("write: %w", err))
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.Timeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return c.fail(fmt.Errorf("read: %w", err))
	}

	if err := json.Unmarshal(msg, out); err != nil {
		return fmt.Errorf("decode camilladsp response: %w", err)
	}
	return nil
}

// fail drops the connection after a transport error so the next request
// dials again. c.mu must be held.
func (c *Camilla) fail(err error) error {
	c.conn.Close()
	c.conn = nil
	return err
}
