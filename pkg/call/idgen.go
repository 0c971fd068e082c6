package call

import (
	"fmt"
	"sync/atomic"
)

// idCounter монотонный счетчик идентификаторов вызовов.
// Идентификаторы уникальны в пределах процесса и никогда не переиспользуются.
var idCounter atomic.Uint64

// nextCallID возвращает следующий идентификатор вызова вида "C-<n>"
func nextCallID() string {
	return fmt.Sprintf("C-%d", idCounter.Add(1))
}
