package engagement

import (
	"log/slog"
	"net/http"
	"time"

	"blog-engagement/engagement/domain"
	"blog-engagement/engagement/identity"

	"github.com/gin-gonic/gin"
)

const visitorKey = "engagement.visitor"

// Visitor é a chave do registro de sessões.
type Visitor struct {
	SessionID string
	DeviceID  string
}

// CookieOptions controla os cookies de identidade.
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	// DeviceMaxAge é a validade do cookie de dispositivo. O de sessão não
	// tem Max-Age e some quando o navegador fecha.
	DeviceMaxAge time.Duration
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	if o.DeviceMaxAge <= 0 {
		o.DeviceMaxAge = 365 * 24 * time.Hour
	}
	return o
}

// cookieCarrier implementa identity.Carrier sobre a requisição gin.
// Valores gravados nesta requisição são vistos pelos Get seguintes.
type cookieCarrier struct {
	c    *gin.Context
	opts CookieOptions
	set  map[string]string
}

func (cc *cookieCarrier) Get(name string) (string, bool) {
	if v, ok := cc.set[name]; ok {
		return v, true
	}
	v, err := cc.c.Cookie(name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (cc *cookieCarrier) Set(name, value string, durable bool) {
	maxAge := 0
	if durable {
		maxAge = int(cc.opts.DeviceMaxAge.Seconds())
	}
	cc.c.SetSameSite(cc.opts.SameSite)
	cc.c.SetCookie(name, value, maxAge, cc.opts.Path, cc.opts.Domain, cc.opts.Secure, true)
	if cc.set == nil {
		cc.set = make(map[string]string)
	}
	cc.set[name] = value
}

// Identify resolve (ou cria) os ids de sessão e dispositivo do visitante e
// guarda o Visitor no contexto gin.
//
// Com keeper, cada requisição renova o escopo da sessão. Se o cookie ainda
// traz um id cujo escopo já expirou, a sessão é trocada por uma nova: o id
// antigo não volta a contar views.
func Identify(ids identity.Provider, opts CookieOptions, keeper domain.SessionKeeper) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		carrier := &cookieCarrier{c: c, opts: opts}
		sid := ids.SessionID(carrier)
		if keeper != nil {
			sid = keepSession(c, ids, carrier, keeper, sid)
		}
		c.Set(visitorKey, Visitor{
			SessionID: sid,
			DeviceID:  ids.DeviceID(carrier),
		})
		c.Next()
	}
}

func keepSession(c *gin.Context, ids identity.Provider, carrier *cookieCarrier, keeper domain.SessionKeeper, sid string) string {
	_, minted := carrier.set[ids.SessionKey()]
	alive, err := keeper.Touch(c.Request.Context(), sid)
	if err != nil {
		slog.Warn("session scope not renewed", "sessionId", sid, "error", err)
		return sid
	}
	if alive || minted {
		return sid
	}

	rotated := ids.RotateSession(carrier)
	if _, err := keeper.Touch(c.Request.Context(), rotated); err != nil {
		slog.Warn("session scope not renewed", "sessionId", rotated, "error", err)
	}
	slog.Debug("session expired, rotated", "old", sid, "sessionId", rotated)
	return rotated
}

// VisitorFrom devolve o visitante resolvido por Identify.
func VisitorFrom(c *gin.Context) (Visitor, bool) {
	v, ok := c.Get(visitorKey)
	if !ok {
		return Visitor{}, false
	}
	visitor, ok := v.(Visitor)
	return visitor, ok
}
