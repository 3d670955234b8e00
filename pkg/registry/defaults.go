// pkg/registry/defaults.go
package registry

// DefaultManifest is the built-in manifest used when no file is configured.
func DefaultManifest() *AgentManifest {
	return &AgentManifest{
		Version:     "1.0.0",
		LastUpdated: "2026-01-01T00:00:00Z",
		Agents: []Agent{
			{
				ID:                   "query-agent",
				DisplayName:          "Query",
				Description:          "domande su giacenze, prezzi e dettagli dei vini in cantina",
				Category:             "query",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"quante bottiglie di Barolo ho?", "che vini rossi ho sotto i 30 euro?"},
				Tags:                 []string{"inventory", "search"},
			},
			{
				ID:                   "single-movement-agent",
				DisplayName:          "Single Movement",
				Description:          "un solo carico o scarico di bottiglie",
				Category:             "single_movement",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"ho venduto 3 Barolo", "arrivate 12 bottiglie di Prosecco"},
				Tags:                 []string{"movement"},
			},
			{
				ID:                   "multi-movement-agent",
				DisplayName:          "Multi Movement",
				Description:          "più carichi o scarichi nello stesso messaggio",
				Category:             "multi_movement",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"ho venduto 3 Barolo e 2 Chianti"},
				Tags:                 []string{"movement"},
			},
			{
				ID:                   "analytics-agent",
				DisplayName:          "Analytics",
				Description:          "andamenti, vini più venduti, statistiche sui movimenti",
				Category:             "analytics",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"quali sono i vini più venduti questo mese?"},
				Tags:                 []string{"ledger"},
			},
			{
				ID:                   "catalog-agent",
				DisplayName:          "Catalog Management",
				Description:          "aggiungere, modificare o eliminare vini dal catalogo",
				Category:             "catalog_management",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"aggiungi al catalogo il Brunello di Montalcino 2018 a 45 euro"},
				Tags:                 []string{"catalog"},
			},
			{
				ID:                   "reporting-agent",
				DisplayName:          "Reporting",
				Description:          "report e inventario completo in forma di tabella",
				Category:             "reporting",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"fammi il report dell'inventario"},
				Tags:                 []string{"report"},
			},
			{
				ID:                   "notification-agent",
				DisplayName:          "Notification",
				Description:          "avvisi di scorta minima e notifiche",
				Category:             "notification",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"avvisami quando il Barolo scende sotto 5 bottiglie"},
				Tags:                 []string{"alert"},
			},
			{
				ID:                   "clarification-agent",
				DisplayName:          "Dialogue Clarification",
				Description:          "domande sulla conversazione in corso o richieste di chiarimento",
				Category:             "dialogue_clarification",
				Version:              "1.0.0",
				ImplementationStatus: StatusCompleted,
				Examples:             []string{"cosa ti avevo detto prima?"},
				Tags:                 []string{"conversation"},
			},
			{
				ID:                   "extraction-agent",
				DisplayName:          "Catalog Extraction",
				Description:          "importare il catalogo da un file caricato",
				Category:             "extraction",
				Version:              "1.0.0",
				ImplementationStatus: StatusPlanned,
				Examples:             []string{"importa i vini da questo file"},
				Tags:                 []string{"import"},
			},
		},
	}
}
