package config

// migrateLegacyFields rewrites known-stale config shapes in place, on the
// raw decoded JSON tree, before it is re-marshaled into Config. Each rule
// moves a value and deletes its old location; a rule is a no-op when the
// legacy field is absent.
func migrateLegacyFields(raw map[string]interface{}) {
	tools, _ := raw["tools"].(map[string]interface{})
	if tools == nil {
		return
	}

	// tools.exec.restrictToWorkspace -> tools.restrictToWorkspace
	if exec, ok := tools["exec"].(map[string]interface{}); ok {
		if v, ok := exec["restrictToWorkspace"]; ok {
			tools["restrictToWorkspace"] = v
			delete(exec, "restrictToWorkspace")
		}
	}

	// tools.browser.* -> tools.web.browser.*
	if browser, ok := tools["browser"].(map[string]interface{}); ok {
		web, _ := tools["web"].(map[string]interface{})
		if web == nil {
			web = map[string]interface{}{}
			tools["web"] = web
		}
		existingBrowser, _ := web["browser"].(map[string]interface{})
		if existingBrowser == nil {
			web["browser"] = browser
		} else {
			for k, v := range browser {
				if _, present := existingBrowser[k]; !present {
					existingBrowser[k] = v
				}
			}
		}
		delete(tools, "browser")
	}

	// tools.web.search.apiKey -> tools.web.search.providers.brave.apiKey
	if web, ok := tools["web"].(map[string]interface{}); ok {
		if search, ok := web["search"].(map[string]interface{}); ok {
			if apiKey, ok := search["apiKey"]; ok {
				providers, _ := search["providers"].(map[string]interface{})
				if providers == nil {
					providers = map[string]interface{}{}
					search["providers"] = providers
				}
				brave, _ := providers["brave"].(map[string]interface{})
				if brave == nil {
					brave = map[string]interface{}{}
					providers["brave"] = brave
				}
				if _, present := brave["apiKey"]; !present {
					brave["apiKey"] = apiKey
				}
				delete(search, "apiKey")
			}
		}
	}

	// tools.redactSensitiveOutput -> security.redactSensitiveOutput
	if v, ok := tools["redactSensitiveOutput"]; ok {
		security, _ := raw["security"].(map[string]interface{})
		if security == nil {
			security = map[string]interface{}{}
			raw["security"] = security
		}
		if _, present := security["redactSensitiveOutput"]; !present {
			security["redactSensitiveOutput"] = v
		}
		delete(tools, "redactSensitiveOutput")
	}
}
