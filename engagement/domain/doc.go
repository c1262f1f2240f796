// Package domain define tipos e contratos do cache de métricas de engajamento
// (views, likes e pesquisa "foi útil?") por post do blog.
//
// Este pacote não depende de net/http, redis nem de implementações concretas.
// A intenção é permitir testes de unidade puros das regras de deduplicação,
// fallback entre camadas e atualização otimista.
package domain
