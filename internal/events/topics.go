package events

// Topic constants for domain events emitted by the back office.
const (
	TopicQuoteCreated           = "quote.created"
	TopicQuoteConverted         = "quote.converted"
	TopicTotalsCalculated       = "document.totals_calculated"
	TopicOrderCreated           = "order.created"
	TopicOrderPaid              = "order.paid"
	TopicOrderCanceled          = "order.canceled"
	TopicPaymentRecorded        = "payment.recorded"
	TopicRefundRecorded         = "payment.refunded"
	TopicShipmentPacked         = "shipment.packed"
	TopicShipmentShipped        = "shipment.shipped"
	TopicShipmentOutForDelivery = "shipment.out_for_delivery"
	TopicShipmentDelivered      = "shipment.delivered"
	TopicShipmentCanceled       = "shipment.canceled"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuoteCreated,
		TopicQuoteConverted,
		TopicTotalsCalculated,
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicPaymentRecorded,
		TopicRefundRecorded,
		TopicShipmentPacked,
		TopicShipmentShipped,
		TopicShipmentOutForDelivery,
		TopicShipmentDelivered,
		TopicShipmentCanceled,
	}
}
