package export

import (
	"testing"

	"custodycore/testutil"
)

func TestExportDoesNotReachIntoCore(t *testing.T) {
	forbidden := testutil.AnyOf(testutil.CoreImportForbidden, testutil.TransportImportForbidden)
	testutil.AssertNoDirectImports(t, ".", forbidden, "exports are built from a document, not the service")
}
