package patch

import "fmt"

// AuthSetupSignature marks the storage-state block in auth.setup.ts
const AuthSetupSignature = "// self-heal: ensure-storage-state"

// FixAuthSetup appends a setup test that writes the Playwright storage state
// file when it does not exist yet.
func FixAuthSetup(target, storagePath string) Operation {
	body := fmt.Sprintf(`%s
import { test as selfHealSetup } from '@playwright/test';
import * as selfHealFs from 'fs';
import * as selfHealPath from 'path';

selfHealSetup('self-heal: ensure storage state exists', async ({ page }) => {
  const storagePath = '%s';
  if (!selfHealFs.existsSync(storagePath)) {
    selfHealFs.mkdirSync(selfHealPath.dirname(storagePath), { recursive: true });
    await page.context().storageState({ path: storagePath });
  }
});
`, AuthSetupSignature, storagePath)

	return Operation{
		Target:    target,
		Mode:      ModeAppend,
		Body:      body,
		Signature: AuthSetupSignature,
		Source:    "FIX_AUTH_SETUP",
	}
}
