package validate

// Marketplace IDs for extensions the recommender names without an explicit
// extension_id.
var extensionIDs = map[string]string{
	"GitHub Copilot":       "GitHub.copilot",
	"Python Extension":     "ms-python.python",
	"Jupyter Extension":    "ms-toolsai.jupyter",
	"JavaScript Extension": "ms-vscode.vscode-typescript-next",
	"REST Client":          "humao.rest-client",
	"YAML Extension":       "redhat.vscode-yaml",
	"Markdownlint":         "DavidAnson.vscode-markdownlint",
}

// ExtensionID resolves an extension name to its marketplace ID, or "".
func ExtensionID(name string) string {
	return extensionIDs[name]
}
