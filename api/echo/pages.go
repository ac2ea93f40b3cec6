package echo

import (
	"html/template"
	"strings"
)

// The callback pages are rendered into a popup opened by the host
// application. On success the popup notifies its opener and closes itself;
// when there is no opener the user is told to close the window.

var successTmpl = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>Connected</title></head>
<body>
<h2>Successfully connected to {{.ToolKey}}</h2>
<p>You can close this window.</p>
<script>
if (window.opener) {
  window.opener.postMessage({type: "oauth-complete", success: true, tool: {{.ToolKey}}}, "*");
  window.close();
}
</script>
</body>
</html>`))

var errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head><title>Authorization failed</title></head>
<body>
<h2>Authorization failed</h2>
<p>{{.Reason}}</p>
<p>{{.Detail}}</p>
<script>
if (window.opener) {
  window.opener.postMessage({type: "oauth-complete", success: false, reason: {{.Reason}}}, "*");
}
</script>
</body>
</html>`))

func successPage(toolKey string) string {
	var buf strings.Builder
	_ = successTmpl.Execute(&buf, map[string]string{"ToolKey": toolKey})
	return buf.String()
}

func errorPage(reason, detail string) string {
	var buf strings.Builder
	_ = errorTmpl.Execute(&buf, map[string]string{"Reason": reason, "Detail": detail})
	return buf.String()
}
