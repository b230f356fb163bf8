// Package templates renders the portal's transactional emails
package templates

import (
	"bytes"
	"html/template"
)

type LayoutProps struct {
	Preheader  string
	Content    template.HTML
	FooterText string
	Brand      string
	BrandURL   string
}

var layoutTemplate = template.Must(template.New("emailLayout").Parse(`<!doctype html>
<html lang="es">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>{{.Brand}}</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.4; background-color: #f3f5f8; margin: 0; padding: 0;">
    <span style="display: none; max-height: 0; overflow: hidden;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" bgcolor="#f3f5f8">
      <tr>
        <td>&nbsp;</td>
        <td width="600" style="max-width: 600px; padding-top: 24px; margin: 0 auto;">
          <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%" style="background: #ffffff; border: 1px solid #e3e7ee; border-radius: 12px;">
            <tr>
              <td style="padding: 24px; border-bottom: 3px solid #0b3d91;">
                <a href="{{.BrandURL}}" style="color: #0b3d91; font-size: 20px; font-weight: bold; text-decoration: none;">{{.Brand}}</a>
              </td>
            </tr>
            <tr>
              <td style="padding: 24px;">{{.Content}}</td>
            </tr>
          </table>
          <p style="color: #8a93a3; font-size: 13px; text-align: center; padding: 16px;">{{.FooterText}}</p>
        </td>
        <td>&nbsp;</td>
      </tr>
    </table>
  </body>
</html>`))

// Layout wraps content in the branded email frame.
func Layout(props LayoutProps) (string, error) {
	if props.Brand == "" {
		props.Brand = "Protección Jurídica Inmobiliaria"
	}
	if props.FooterText == "" {
		props.FooterText = "Recibiste este correo porque iniciaste una cotización en nuestro portal."
	}
	var buf bytes.Buffer
	if err := layoutTemplate.Execute(&buf, props); err != nil {
		return "", err
	}
	return buf.String(), nil
}
