// Package identity deriva os identificadores anônimos usados pelo engajamento:
// o id do post (a partir da URL da página) e os ids de sessão e de dispositivo.
package identity

import (
	"net/url"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	DefaultPostParam  = "postId"
	DefaultSessionKey = "eng_sid"
	DefaultDeviceKey  = "eng_did"
)

// Carrier é onde os ids sobrevivem entre requisições (no adapter HTTP, cookies).
// durable=false significa "só enquanto a sessão existir".
type Carrier interface {
	Get(name string) (string, bool)
	Set(name, value string, durable bool)
}

type Provider struct {
	postParam  string
	sessionKey string
	deviceKey  string
	newID      func() string
}

type Option func(*Provider)

func WithPostParam(name string) Option {
	return func(p *Provider) { p.postParam = name }
}

func WithSessionKey(name string) Option {
	return func(p *Provider) { p.sessionKey = name }
}

func WithDeviceKey(name string) Option {
	return func(p *Provider) { p.deviceKey = name }
}

// WithIDGenerator troca o gerador de ids (testes).
func WithIDGenerator(fn func() string) Option {
	return func(p *Provider) { p.newID = fn }
}

func New(opts ...Option) Provider {
	p := Provider{
		postParam:  DefaultPostParam,
		sessionKey: DefaultSessionKey,
		deviceKey:  DefaultDeviceKey,
		newID:      func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p Provider) SessionKey() string { return p.sessionKey }
func (p Provider) DeviceKey() string  { return p.deviceKey }

// PostID usa o parâmetro explícito se houver; senão o último segmento do
// path sem extensão ("/blog/seo-2024.html" -> "seo-2024").
// Retorna "" quando nada resolve: engajamento desligado para esta view.
func (p Provider) PostID(u *url.URL) string {
	if u == nil {
		return ""
	}
	if v := strings.TrimSpace(u.Query().Get(p.postParam)); v != "" {
		return v
	}

	p2 := u.Path
	i := strings.LastIndex(p2, "/")
	last := strings.TrimSpace(p2[i+1:])
	if last == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(last, path.Ext(last)))
}

// SessionID devolve o id da sessão, criando-o no primeiro acesso.
// Estável enquanto a sessão existir; não há garantia de unicidade global.
func (p Provider) SessionID(c Carrier) string {
	return p.getOrCreate(c, p.sessionKey, false)
}

// RotateSession descarta o id de sessão atual e grava um novo. Usado quando
// o escopo da sessão expirou no servidor mas o cookie continua no navegador.
func (p Provider) RotateSession(c Carrier) string {
	if c == nil {
		return ""
	}
	id := p.newID()
	c.Set(p.sessionKey, id, false)
	return id
}

// DeviceID é o escopo dos flags duráveis (like, pesquisa).
func (p Provider) DeviceID(c Carrier) string {
	return p.getOrCreate(c, p.deviceKey, true)
}

func (p Provider) getOrCreate(c Carrier, name string, durable bool) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(name); ok && validID(v) {
		return v
	}
	id := p.newID()
	c.Set(name, id, durable)
	return id
}

// validID aceita ULIDs e, por compatibilidade, ids curtos alfanuméricos
// gerados por outras versões do site.
func validID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	if _, err := ulid.ParseStrict(v); err == nil {
		return true
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
