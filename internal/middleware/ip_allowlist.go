package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IPAllowlist restricts sensitive routes to localhost plus an optional list
// of IPs or CIDR ranges.
type IPAllowlist struct {
	logger     *logrus.Logger
	allowedIPs []string
}

func NewIPAllowlist(logger *logrus.Logger, allowedIPs []string) *IPAllowlist {
	return &IPAllowlist{logger: logger, allowedIPs: allowedIPs}
}

// Restrict rejects requests from addresses outside the allowlist.
func (l *IPAllowlist) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !l.isAllowed(clientIP) {
			// A misconfigured proxy chain can make ClientIP differ from the
			// socket peer; a direct loopback connection is still trusted.
			remoteIP, _, _ := net.SplitHostPort(c.Request.RemoteAddr)
			if remoteIP == clientIP || !isLoopback(remoteIP) {
				l.logger.WithFields(logrus.Fields{
					"client_ip": clientIP,
					"remote_ip": remoteIP,
					"path":      c.Request.URL.Path,
					"method":    c.Request.Method,
				}).Warn("Rejected non-allowlisted access to sensitive API")

				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"success": false,
					"error":   "This API is only accessible from allowed IP addresses",
					"code":    "IP_NOT_ALLOWED",
				})
				return
			}
		}
		c.Next()
	}
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip == "localhost"
	}
	return parsed.IsLoopback()
}

func (l *IPAllowlist) isAllowed(ip string) bool {
	if isLoopback(ip) {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, allowed := range l.allowedIPs {
		allowed = strings.TrimSpace(allowed)
		if strings.Contains(allowed, "/") {
			_, ipNet, err := net.ParseCIDR(allowed)
			if err != nil {
				l.logger.WithField("allowed", allowed).Warn("Invalid CIDR in allowlist")
				continue
			}
			if ipNet.Contains(parsed) {
				return true
			}
		} else if allowedIP := net.ParseIP(allowed); allowedIP != nil && allowedIP.Equal(parsed) {
			return true
		}
	}
	return false
}
