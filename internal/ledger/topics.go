package ledger

const (
	TopicPaymentSettled      = "payment.settled"
	TopicWithdrawalRequested = "wallet.withdrawal.requested"
	TopicWithdrawalSettled   = "wallet.withdrawal.settled"
)

// Partition key = payment id for settlement events and user id for wallet
// events, so events of one aggregate keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
