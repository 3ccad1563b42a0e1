package testutil

// Order bodies in the shapes existing checkout clients send.
const (
	ProductsOrder = `{
		"identifier": "A1",
		"client": {"name": "Ana", "email": "ana@example.com", "document": "12345678909"},
		"products": [
			{"id": "sku-1", "name": "Camiseta", "unitPrice": 49.9, "quantity": 2},
			{"id": "sku-2", "title": "Boné", "amount": 19.99}
		]
	}`

	ItemsOrder = `{
		"customer": {"name": "Bia"},
		"items": [{"title": "Plano", "unitPrice": 2990, "quantity": 1, "tangible": false}],
		"expiresInDays": 1
	}`

	AmountOrder = `{"amount": 10.5, "description": "Recarga"}`

	WebhookPaid = `{"type": "transaction", "data": {"id": "tx_1", "status": "paid", "amount": 11977}}`
)
