package api

import (
	_ "embed"
	"net/http"
	"strings"

	"approval-tracker/backend/internal/auth"
)

//go:embed openapi.yaml
var openAPISpec string

// SpecHandler serves the embedded OpenAPI YAML document with any runtime
// placeholders replaced. The document contains {oktaIssuer} so clients don't
// have to know the actual tenant or issuer URL.
func SpecHandler(oktaIssuer string) http.HandlerFunc {
	doc := strings.ReplaceAll(openAPISpec, "{oktaIssuer}", strings.TrimSuffix(oktaIssuer, "/"))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write([]byte(doc))
	}
}

// SwaggerHandler returns an HTTP handler that serves a Swagger UI page
// pointing at /openapi.yaml. The page uses the CDN-hosted assets and is
// configured for PKCE against the same Okta tenant used by the application.
func SwaggerHandler(oktaDomain, clientID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.URL.Scheme is only populated behind some proxies
		scheme := r.URL.Scheme
		if scheme == "" {
			scheme = "http"
			if r.TLS != nil {
				scheme = "https"
			}
		}
		oauth2Redirect := scheme + "://" + r.Host + "/docs/oauth2-redirect.html"

		html := strings.ReplaceAll(swaggerHTML, "${SPEC_URL}", "/openapi.yaml")
		html = strings.ReplaceAll(html, "${OAUTH2_REDIRECT}", oauth2Redirect)
		// OKTA_DOMAIN is really the issuer base URL; pass as-is
		html = strings.ReplaceAll(html, "${OKTA_DOMAIN}", oktaDomain)
		html = strings.ReplaceAll(html, "${CLIENT_ID}", clientID)
		html = strings.ReplaceAll(html, "${SCOPES}", strings.Join(auth.AllScopes, " "))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}
}

// OAuth2RedirectHandler serves the OAuth2 redirect page used by Swagger UI.
func OAuth2RedirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(oauthRedirectHTML))
	})
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8" />
  <title>Approval Tracker API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
    });
    window.ui = ui;

    ui.initOAuth({
      clientId: "${CLIENT_ID}",
      scopes: "${SCOPES}",
      usePkceWithAuthorizationCodeGrant: true,
    });

    const style = document.createElement('style');
    style.textContent =
      " .dialog-ux input[name=\"client_id\"],\n" +
      " .dialog-ux label[for=\"client_id\"] {\n" +
      "     display: none !important;\n" +
      " }\n";
    document.head.appendChild(style);

    const observer = new MutationObserver(() => {
      const cidInput = document.querySelector('.dialog-ux input[name="client_id"]');
      if (cidInput) {
        cidInput.value = "${CLIENT_ID}";
      }
      const secretInput = document.querySelector('.dialog-ux input[name="client_secret"]');
      if (secretInput) {
        secretInput.placeholder = "optional, PKCE is used";
        secretInput.disabled = true;
      }
    });
    observer.observe(document.body, { childList: true, subtree: true });
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
</script>
</body>
</html>`
