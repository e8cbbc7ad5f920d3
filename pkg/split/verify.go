// pkg/split/verify.go
package split

import (
	"fmt"

	"github.com/David-Botos/churn-ml/pkg/model"
)

// Verify checks that train and test are disjoint and together cover full
func Verify(full, train, test *model.Dataset) error {
	for _, id := range train.IDs() {
		if test.Contains(id) {
			return fmt.Errorf("identifier %s is in both train and test", id)
		}
		if !full.Contains(id) {
			return fmt.Errorf("train identifier %s is not in the full dataset", id)
		}
	}
	for _, id := range test.IDs() {
		if !full.Contains(id) {
			return fmt.Errorf("test identifier %s is not in the full dataset", id)
		}
	}
	if train.Len()+test.Len() != full.Len() {
		return fmt.Errorf("row count verification failed: full=%d, train=%d, test=%d",
			full.Len(), train.Len(), test.Len())
	}
	return nil
}
