package views

import "html/template"

// pageTemplates holds every view template. Each view renders one named
// definition.
var pageTemplates = template.Must(template.New("views").Funcs(templateFuncs).Parse(
	fieldTemplate + stepTemplate + registerTemplate + cartTemplate + productsTemplate +
		credentialsTemplate + pdvTemplate + qrTemplate,
))
