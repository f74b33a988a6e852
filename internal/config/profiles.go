package config

// DevProfile returns a starter configuration for local development:
// loopback listener, text logs at debug level, rate limiting relaxed.
func DevProfile() string {
	return `# factsentry configuration (dev profile)

listen:
  host: 127.0.0.1
  port: 8080

vault:
  path: vault.json

security:
  rate_limit:
    enabled: true
    per_agent: 600
    burst: 100
    cleanup_interval: 5m
  grant:
    enabled: false

logging:
  level: debug
  format: text
  output: stdout
  audit:
    sampling_rate: 1.0
    deny_sampling_rate: 1.0

pending:
  sweep_interval: 30s

shutdown:
  timeout: 10s

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}

// ProdProfile returns a hardened starter configuration: JSON logs, tighter
// rate limits, and a grant block ready to enable once a key exists.
func ProdProfile() string {
	return `# factsentry configuration (prod profile)

listen:
  host: 127.0.0.1
  port: 8080
  # tls:
  #   cert_file: /etc/factsentry/tls/cert.pem
  #   key_file: /etc/factsentry/tls/key.pem

vault:
  path: /var/lib/factsentry/vault.json

security:
  rate_limit:
    enabled: true
    per_agent: 120
    burst: 30
    cleanup_interval: 5m
  grant:
    enabled: false
    # jwk_file: /etc/factsentry/grant.jwk
    # ttl: 10m

logging:
  level: info
  format: json
  output: stdout
  audit:
    sampling_rate: 1.0
    deny_sampling_rate: 1.0

pending:
  sweep_interval: 1m

shutdown:
  timeout: 30s

reload:
  enabled: true
  watch_file: true
  debounce: 2s
`
}
