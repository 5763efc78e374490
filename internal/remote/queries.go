package remote

const productFields = `
	id
	title
	status
	descriptionHtml
	variants(first: 1) {
		edges {
			node {
				id
				price
				inventoryQuantity
				inventoryItem {
					id
				}
			}
		}
	}`

const queryProduct = `query GetProduct($id: ID!) {
	product(id: $id) {` + productFields + `
	}
}`

const queryProducts = `query GetActiveProducts($first: Int!, $filter: String!, $after: String) {
	products(first: $first, query: $filter, after: $after) {
		edges {
			node {` + productFields + `
			}
		}
		pageInfo {
			hasNextPage
			endCursor
		}
	}
}`

const queryFirstLocation = `query {
	locations(first: 1) {
		edges {
			node {
				id
			}
		}
	}
}`

const mutationProductSet = `mutation productSet($input: ProductSetInput!) {
	productSet(input: $input) {
		product {
			id
		}
		userErrors {
			field
			message
		}
	}
}`

const mutationProductUpdate = `mutation productUpdate($input: ProductInput!) {
	productUpdate(input: $input) {
		userErrors {
			field
			message
		}
	}
}`

const mutationVariantsBulkUpdate = `mutation updateVariant($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
	productVariantsBulkUpdate(productId: $productId, variants: $variants) {
		productVariants {
			id
			price
		}
		userErrors {
			field
			message
		}
	}
}`

const mutationProductDelete = `mutation productDelete($input: ProductDeleteInput!) {
	productDelete(input: $input) {
		deletedProductId
		userErrors {
			field
			message
		}
	}
}`

// activeFilter limits listings to active products.
const activeFilter = "status:active"
