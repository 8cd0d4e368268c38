package wire

// ListenerKind distinguishes the protocol a listener terminates.
type ListenerKind string

const (
	ListenerHTTP  ListenerKind = "HTTP"
	ListenerHTTPS ListenerKind = "HTTPS"
	ListenerTCP   ListenerKind = "TCP"
)

// defaultStickyName matches the original's SOZUBALANCEID cookie name.
const defaultStickyName = "SOZUBALANCEID"

const (
	defaultAnswer404 = "HTTP/1.1 404 Not Found\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n"
	defaultAnswer503 = "HTTP/1.1 503 Service Unavailable\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n"
)

// HttpListenerConfig configures a listener bound for plaintext HTTP.
type HttpListenerConfig struct {
	Address        string  `json:"address"`
	PublicAddress  *string `json:"public_address,omitempty"`
	Answer404      string  `json:"answer_404"`
	Answer503      string  `json:"answer_503"`
	ExpectProxy    bool    `json:"expect_proxy,omitempty"`
	StickyName     string  `json:"sticky_name"`
	FrontTimeout   int     `json:"front_timeout"`
	BackTimeout    int     `json:"back_timeout"`
	ConnectTimeout int     `json:"connect_timeout"`
	RequestTimeout int     `json:"request_timeout"`
}

// DefaultHttpListenerConfig returns a listener config with the original's
// documented defaults applied.
func DefaultHttpListenerConfig(address string) HttpListenerConfig {
	return HttpListenerConfig{
		Address:        address,
		Answer404:      defaultAnswer404,
		Answer503:      defaultAnswer503,
		StickyName:     defaultStickyName,
		FrontTimeout:   60,
		BackTimeout:    30,
		ConnectTimeout: 3,
		RequestTimeout: 10,
	}
}

// HttpsListenerConfig configures a TLS-terminating listener.
type HttpsListenerConfig struct {
	Address        string   `json:"address"`
	PublicAddress  *string  `json:"public_address,omitempty"`
	Answer404      string   `json:"answer_404"`
	Answer503      string   `json:"answer_503"`
	ExpectProxy    bool     `json:"expect_proxy,omitempty"`
	StickyName     string   `json:"sticky_name"`
	FrontTimeout   int      `json:"front_timeout"`
	BackTimeout    int      `json:"back_timeout"`
	ConnectTimeout int      `json:"connect_timeout"`
	RequestTimeout int      `json:"request_timeout"`
	CipherList     []string `json:"cipher_list,omitempty"`
	MinTLSVersion  string   `json:"min_tls_version,omitempty"`
}

func DefaultHttpsListenerConfig(address string) HttpsListenerConfig {
	return HttpsListenerConfig{
		Address:        address,
		Answer404:      defaultAnswer404,
		Answer503:      defaultAnswer503,
		StickyName:     defaultStickyName,
		FrontTimeout:   60,
		BackTimeout:    30,
		ConnectTimeout: 3,
		RequestTimeout: 10,
	}
}

// TcpListenerConfig configures a raw TCP listener (no HTTP parsing).
type TcpListenerConfig struct {
	Address     string  `json:"address"`
	PublicAddr  *string `json:"public_address,omitempty"`
	ExpectProxy bool    `json:"expect_proxy,omitempty"`
}

// ListenerEntry pairs a listener's static configuration with its activation
// state (a bound listener is "active"; a declared-but-inactive listener
// holds no socket).
type ListenerEntry[T any] struct {
	Config T    `json:"config"`
	Active bool `json:"active"`
}

// ListenersList is the response payload for a listener-listing request.
type ListenersList struct {
	HttpListeners  map[string]ListenerEntry[HttpListenerConfig]  `json:"http_listeners"`
	HttpsListeners map[string]ListenerEntry[HttpsListenerConfig] `json:"https_listeners"`
	TcpListeners   map[string]ListenerEntry[TcpListenerConfig]   `json:"tcp_listeners"`
}
